package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
)

type loadMode string

const (
	modeAddRemove loadMode = "add-remove"
	modeAddPlace  loadMode = "add-place"
	modeAddCancel loadMode = "add-cancel"
	modeMixed     loadMode = "mixed"
)

var mixedModes = []loadMode{modeAddRemove, modeAddPlace, modeAddCancel}

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	customers   int
	products    int
	stock       int
	qty         int
	adminToken  string
	customerTag string
	verifyStock bool
	outputPath  string
}

func parseConfig(args []string, output io.Writer) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 1m, 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 10, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeMixed), "load mode: add-remove | add-place | add-cancel | mixed")
	fs.IntVar(&cfg.customers, "customers", 20, "customers registered for the run and shared by workers")
	fs.IntVar(&cfg.products, "products", 3, "products all customers compete for")
	fs.IntVar(&cfg.stock, "stock", 1000, "initial stock of each product created with -admin-token")
	fs.IntVar(&cfg.qty, "qty", 1, "quantity added to the cart per scenario")
	fs.StringVar(&cfg.adminToken, "admin-token", "", "admin token; when set the run creates its own products, otherwise it uses the catalog")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "username prefix for generated customers")
	fs.BoolVar(&cfg.verifyStock, "verify-stock", true, "check stock conservation after the run")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.adminToken = strings.TrimSpace(cfg.adminToken)

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.customers <= 0:
		return cfg, errors.New("customers must be > 0")
	case cfg.products <= 0:
		return cfg, errors.New("products must be > 0")
	case cfg.stock <= 0:
		return cfg, errors.New("stock must be > 0")
	case cfg.qty <= 0:
		return cfg, errors.New("qty must be > 0")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeAddRemove, modeAddPlace, modeAddCancel, modeMixed:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]shopv1.ShopServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, shopv1.NewShopServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := runLoad(ctx, cfg, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || (result.Stock != nil && !result.Stock.Conserved) {
		os.Exit(1)
	}
}

// runLoad готовит клиентов и товары, прогоняет сценарии и, если включено,
// сверяет остатки после прогона.
func runLoad(ctx context.Context, cfg config, clients []shopv1.ShopServiceClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	col := newCollector()
	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())

	fx, err := prepareFixture(ctx, clients[0], cfg, runID, col)
	if err != nil {
		return report{}, fmt.Errorf("prepare fixture: %w", err)
	}

	startedAt := time.Now()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli shopv1.ShopServiceClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, cli, cfg, fx, id, runID, col)
			}
		}(client)
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if !cfg.verifyStock {
		return result, nil
	}

	stock, err := verifyStock(context.WithoutCancel(ctx), clients[0], cfg, fx)
	if err != nil {
		return result, fmt.Errorf("verify stock: %w", err)
	}
	result.Stock = &stock
	return result, nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// scenarioMode раскладывает mixed-режим по индексу сценария.
func scenarioMode(mode loadMode, index int) loadMode {
	if mode != modeMixed {
		return mode
	}
	return mixedModes[index%len(mixedModes)]
}

// runScenario кладёт товар в корзину клиента и затем убирает его, оформляет
// заказ или отменяет корзину. Клиенты и товары общие для всех воркеров, так
// что вызовы одного клиента конкурируют между собой.
func runScenario(
	ctx context.Context,
	client shopv1.ShopServiceClient,
	cfg config,
	fx fixture,
	index int,
	runID string,
	col *collector,
) error {
	scenarioStart := time.Now()
	var scenarioErr error
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), grpcCode(scenarioErr), isRejection(scenarioErr))
	}()

	customer := fx.customers[index%len(fx.customers)]
	productID := fx.products[(index/len(fx.customers))%len(fx.products)]
	key := func(step string) string {
		return fmt.Sprintf("lt-%s-%s-%d", step, runID, index)
	}

	scenarioErr = callRPC(ctx, cfg.timeout, col, "AddToCart", customer.token, key("add"), func(ctx context.Context) error {
		_, err := client.AddToCart(ctx, &shopv1.AddToCartRequest{ProductID: productID, Qty: int32(cfg.qty)})
		return err
	})
	if scenarioErr != nil {
		return scenarioErr
	}

	switch scenarioMode(cfg.mode, index) {
	case modeAddRemove:
		scenarioErr = callRPC(ctx, cfg.timeout, col, "RemoveFromCart", customer.token, key("remove"), func(ctx context.Context) error {
			_, err := client.RemoveFromCart(ctx, &shopv1.RemoveFromCartRequest{ProductID: productID})
			return err
		})
	case modeAddPlace:
		scenarioErr = callRPC(ctx, cfg.timeout, col, "PlaceOrder", customer.token, key("place"), func(ctx context.Context) error {
			_, err := client.PlaceOrder(ctx, &shopv1.PlaceOrderRequest{})
			return err
		})
	case modeAddCancel:
		scenarioErr = callRPC(ctx, cfg.timeout, col, "CancelOrder", customer.token, key("cancel"), func(ctx context.Context) error {
			_, err := client.CancelOrder(ctx, &shopv1.CancelOrderRequest{})
			return err
		})
	}
	return scenarioErr
}

// callRPC выполняет вызов с таймаутом, токеном сессии и ключом идемпотентности
// и записывает результат в коллектор.
func callRPC(
	ctx context.Context,
	timeout time.Duration,
	col *collector,
	method, token, idempotencyKey string,
	call func(context.Context) error,
) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if token != "" {
		callCtx = shopv1.WithToken(callCtx, token)
	}
	if idempotencyKey != "" {
		callCtx = shopv1.WithIdempotencyKey(callCtx, idempotencyKey)
	}

	err := call(callCtx)
	col.record(method, time.Since(start), grpcCode(err), isRejection(err))
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

// isRejection отличает отказ бизнес-правила от сбоя сервиса.
func isRejection(err error) bool {
	if err == nil {
		return false
	}
	switch shopv1.ErrorReason(err) {
	case shopv1.ReasonOutOfStock,
		shopv1.ReasonItemNotInCart,
		shopv1.ReasonNoActiveOrder,
		shopv1.ReasonEmptyCart:
		return true
	default:
		return false
	}
}
