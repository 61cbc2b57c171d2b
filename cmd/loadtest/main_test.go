package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/service/account"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const testAdminToken = "load-admin"

func TestParseMode(t *testing.T) {
	for _, value := range []string{"add-remove", "add-place", " add-cancel ", "mixed"} {
		mode, err := parseMode(value)
		require.NoError(t, err, value)
		require.NotEmpty(t, mode)
	}

	_, err := parseMode("create-pay")
	require.EqualError(t, err, "unsupported mode: create-pay")
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	require.NoError(t, err)

	require.Equal(t, "localhost:50051", cfg.addr)
	require.Equal(t, 400, cfg.total)
	require.False(t, cfg.totalSet)
	require.Equal(t, modeMixed, cfg.mode)
	require.Equal(t, 5*time.Second, cfg.timeout)
	require.Equal(t, 20, cfg.customers)
	require.Equal(t, 3, cfg.products)
	require.True(t, cfg.verifyStock)
	require.Empty(t, cfg.adminToken)
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-addr", "shop:50051",
		"-total", "50",
		"-duration", "30s",
		"-mode", "add-place",
		"-customers", "5",
		"-products", "1",
		"-stock", "10",
		"-admin-token", " secret ",
		"-verify-stock=false",
		"-output", "report.json",
	}, io.Discard)
	require.NoError(t, err)

	require.Equal(t, "shop:50051", cfg.addr)
	require.Equal(t, 50, cfg.total)
	require.True(t, cfg.totalSet)
	require.Equal(t, 30*time.Second, cfg.duration)
	require.Equal(t, modeAddPlace, cfg.mode)
	require.Equal(t, 5, cfg.customers)
	require.Equal(t, 1, cfg.products)
	require.Equal(t, 10, cfg.stock)
	require.Equal(t, "secret", cfg.adminToken)
	require.False(t, cfg.verifyStock)
	require.Equal(t, "report.json", cfg.outputPath)
	require.Equal(t, "duration:30s,max-total:50", runTarget(cfg))
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := map[string][]string{
		"duration must be >= 0":                               {"-duration", "-1s"},
		"total must be > 0 when duration is not set":          {"-total", "0"},
		"total must be > 0 when explicitly set with duration": {"-duration", "1s", "-total", "0"},
		"concurrency must be > 0":                             {"-concurrency", "0"},
		"connections must be > 0":                             {"-connections", "0"},
		"timeout must be > 0":                                 {"-timeout", "0s"},
		"customers must be > 0":                               {"-customers", "0"},
		"products must be > 0":                                {"-products", "0"},
		"stock must be > 0":                                   {"-stock", "0"},
		"qty must be > 0":                                     {"-qty", "0"},
		"customer-tag is required":                            {"-customer-tag", " "},
		"unsupported mode: bogus":                             {"-mode", "bogus"},
	}
	for want, args := range cases {
		_, err := parseConfig(args, io.Discard)
		require.EqualError(t, err, want)
	}

	_, err := parseConfig([]string{"-h"}, io.Discard)
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestDispatchJobs(t *testing.T) {
	collect := func(ctx context.Context, cfg config) []int {
		jobs := make(chan int, 16)
		go dispatchJobs(ctx, jobs, cfg)
		var got []int
		for id := range jobs {
			got = append(got, id)
		}
		return got
	}

	require.Equal(t, []int{0, 1, 2}, collect(context.Background(), config{total: 3}))
	require.Len(t, collect(context.Background(), config{total: 4, totalSet: true, duration: time.Minute}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := make(chan int)
	dispatchJobs(ctx, blocked, config{duration: time.Minute})
	_, open := <-blocked
	require.False(t, open)
}

func TestCollectorAndReport(t *testing.T) {
	col := newCollector()
	col.record("AddToCart", 2*time.Millisecond, codes.OK, false)
	col.record("AddToCart", 4*time.Millisecond, codes.FailedPrecondition, true)
	col.record("AddToCart", 6*time.Millisecond, codes.Unavailable, false)
	col.record(scenarioMethod, 10*time.Millisecond, codes.OK, false)
	col.record(scenarioMethod, 12*time.Millisecond, codes.FailedPrecondition, true)

	add, ok := col.snapshot("AddToCart")
	require.True(t, ok)
	require.EqualValues(t, 3, add.Calls)
	require.EqualValues(t, 1, add.Success)
	require.EqualValues(t, 1, add.Rejected)
	require.EqualValues(t, 1, add.Failed)
	require.InDelta(t, 1.0/3.0, add.ErrorRate, 1e-9)
	require.EqualValues(t, 1, add.Codes["Unavailable"])
	require.InDelta(t, 4.0, add.LatencyMs.P50, 1e-9)

	_, ok = col.snapshot("PlaceOrder")
	require.False(t, ok)

	result := col.buildReport(time.Now(), 2*time.Second)
	require.EqualValues(t, 2, result.TotalScenarios)
	require.EqualValues(t, 2, result.SuccessScenarios)
	require.Zero(t, result.FailedScenarios)
	require.InDelta(t, 1.0, result.RPS, 1e-9)
	require.Contains(t, result.Methods, "AddToCart")
}

func TestLatencyHelpers(t *testing.T) {
	require.Equal(t, latencySummary{}, buildLatencySummary(nil))

	summary := buildLatencySummary([]float64{4, 1, 3, 2})
	require.Equal(t, 1.0, summary.Min)
	require.Equal(t, 4.0, summary.Max)
	require.Equal(t, 2.5, summary.Avg)
	require.InDelta(t, 2.5, summary.P50, 1e-9)

	require.Zero(t, percentile(nil, 50))
	require.Equal(t, 7.0, percentile([]float64{7}, 99))
	require.Zero(t, ratio(1, 0))
	require.Equal(t, 0.25, ratio(1, 4))
}

func TestScenarioMode(t *testing.T) {
	require.Equal(t, modeAddPlace, scenarioMode(modeAddPlace, 7))
	require.Equal(t, modeAddRemove, scenarioMode(modeMixed, 0))
	require.Equal(t, modeAddPlace, scenarioMode(modeMixed, 1))
	require.Equal(t, modeAddCancel, scenarioMode(modeMixed, 5))
}

func TestIsRejection(t *testing.T) {
	withReason := func(code codes.Code, reason string) error {
		st, err := status.New(code, reason).WithDetails(&errdetails.ErrorInfo{Domain: shopv1.ErrorDomain, Reason: reason})
		require.NoError(t, err)
		return st.Err()
	}

	require.True(t, isRejection(withReason(codes.FailedPrecondition, shopv1.ReasonOutOfStock)))
	require.True(t, isRejection(withReason(codes.NotFound, shopv1.ReasonItemNotInCart)))
	require.False(t, isRejection(withReason(codes.Unavailable, shopv1.ReasonPersistenceUnavailable)))
	require.False(t, isRejection(status.Error(codes.Internal, "boom")))
	require.False(t, isRejection(nil))
	require.Equal(t, codes.OK, grpcCode(nil))
	require.Equal(t, codes.Unknown, grpcCode(errors.New("plain")))
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	result := report{TotalScenarios: 3, Stock: &stockReport{Conserved: true}}
	require.NoError(t, writeJSONReport(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.EqualValues(t, 3, decoded.TotalScenarios)
	require.True(t, decoded.Stock.Conserved)

	require.Error(t, writeJSONReport(".", result))
	require.Error(t, writeJSONReport("../escape.json", result))
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			scenarioMethod: {Calls: 2},
			"AddToCart":    {Calls: 2, Success: 1, Rejected: 1},
		},
		Stock: &stockReport{
			Conserved: true,
			Products:  []productStock{{ProductID: "p-1", Initial: 5, Final: 3, Reserved: 1, Placed: 1, Conserved: true}},
		},
	}, config{mode: modeMixed, total: 2, customers: 1, products: 1})

	text := out.String()
	require.Contains(t, text, "mode=mixed run=count:2")
	require.Contains(t, text, "AddToCart: calls=2 success=1 rejected=1 failed=0")
	require.NotContains(t, text, "scenario: calls")
	require.Contains(t, text, "p-1: initial=5 final=3 reserved=1 placed=1 conserved=true")
}

type shopServer struct {
	client  shopv1.ShopServiceClient
	catalog *catalog.Service
}

func startShopServer(t *testing.T, adminToken string) shopServer {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := logger.WithField("component", "loadtest-test")

	store := memory.NewStore()
	catalogSvc := catalog.NewService(store, entry)
	service := grpcsvc.NewShopService(grpcsvc.Dependencies{
		Cart:    cart.NewEngine(store, cart.WithLogger(entry)),
		Catalog: catalogSvc,
		Accounts: account.NewService(store, memory.NewSessionRepository(),
			account.WithLogger(entry),
			account.WithHashCost(bcrypt.MinCost),
		),
		Idempotency: memory.NewIdempotencyRepository(),
		AdminToken:  adminToken,
		Logger:      entry,
	})

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	shopv1.RegisterShopServiceServer(server, service)
	go func() {
		_ = server.Serve(listener)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return shopServer{client: shopv1.NewShopServiceClient(conn), catalog: catalogSvc}
}

func loadConfig(mode loadMode) config {
	return config{
		total:       90,
		concurrency: 6,
		connections: 1,
		timeout:     5 * time.Second,
		mode:        mode,
		customers:   4,
		products:    2,
		stock:       5,
		qty:         2,
		adminToken:  testAdminToken,
		customerTag: "lt",
		verifyStock: true,
	}
}

func TestRunLoad_ConservesStockUnderContention(t *testing.T) {
	for _, mode := range []loadMode{modeAddRemove, modeAddPlace, modeAddCancel, modeMixed} {
		t.Run(string(mode), func(t *testing.T) {
			srv := startShopServer(t, testAdminToken)

			result, err := runLoad(context.Background(), loadConfig(mode), []shopv1.ShopServiceClient{srv.client})
			require.NoError(t, err)

			require.EqualValues(t, 90, result.TotalScenarios)
			require.Zero(t, result.FailedScenarios)
			require.NotNil(t, result.Stock)
			require.True(t, result.Stock.Conserved, "%+v", result.Stock.Products)
			require.Len(t, result.Stock.Products, 2)
			for _, line := range result.Stock.Products {
				require.EqualValues(t, 5, line.Initial)
				require.GreaterOrEqual(t, line.Final, int64(0))
			}
		})
	}
}

func TestRunLoad_UsesCatalogWithoutAdminToken(t *testing.T) {
	srv := startShopServer(t, "")
	_, err := srv.catalog.AddProduct(context.Background(), catalog.ProductInput{Name: "Sold out", PriceMinor: 100, Stock: 0})
	require.NoError(t, err)
	_, err = srv.catalog.AddProduct(context.Background(), catalog.ProductInput{Name: "Apple", PriceMinor: 100, Stock: 8})
	require.NoError(t, err)

	cfg := loadConfig(modeAddPlace)
	cfg.adminToken = ""
	cfg.total = 20

	result, err := runLoad(context.Background(), cfg, []shopv1.ShopServiceClient{srv.client})
	require.NoError(t, err)
	require.Len(t, result.Stock.Products, 1)
	require.True(t, result.Stock.Conserved)
	require.EqualValues(t, 8, result.Stock.Products[0].Initial)
}

func TestRunLoad_FixtureErrors(t *testing.T) {
	srv := startShopServer(t, "")

	_, err := runLoad(context.Background(), loadConfig(modeMixed), nil)
	require.EqualError(t, err, "no clients")

	cfg := loadConfig(modeMixed)
	cfg.adminToken = ""
	_, err = runLoad(context.Background(), cfg, []shopv1.ShopServiceClient{srv.client})
	require.ErrorContains(t, err, "catalog has no products in stock")

	cfg.adminToken = "wrong"
	_, err = runLoad(context.Background(), cfg, []shopv1.ShopServiceClient{srv.client})
	require.Error(t, err)
	require.Equal(t, codes.PermissionDenied, status.Code(errors.Unwrap(errors.Unwrap(err))))
}
