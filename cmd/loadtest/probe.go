package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
)

const (
	loadPassword      = "load-password"
	loadPriceMinor    = int64(100)
	historyFetchLimit = int32(1 << 20)
)

type customerSession struct {
	username string
	token    string
}

// fixture хранит клиентов и товары одного прогона и остатки до его начала.
type fixture struct {
	customers    []customerSession
	products     []string
	initialStock map[string]int64
}

type productStock struct {
	ProductID string `json:"product_id"`
	Initial   int64  `json:"initial"`
	Final     int64  `json:"final"`
	Reserved  int64  `json:"reserved"`
	Placed    int64  `json:"placed"`
	Conserved bool   `json:"conserved"`
}

// stockReport сверяет для каждого товара: остаток после прогона плюс
// количество в открытых корзинах и оформленных заказах равно остатку до прогона.
type stockReport struct {
	Conserved bool           `json:"conserved"`
	Products  []productStock `json:"products"`
}

func prepareFixture(ctx context.Context, client shopv1.ShopServiceClient, cfg config, runID string, col *collector) (fixture, error) {
	fx := fixture{initialStock: make(map[string]int64, cfg.products)}

	if err := prepareProducts(ctx, client, cfg, runID, col, &fx); err != nil {
		return fixture{}, err
	}

	for i := 0; i < cfg.customers; i++ {
		username := fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, i)
		err := callRPC(ctx, cfg.timeout, col, "Register", "", "", func(ctx context.Context) error {
			_, err := client.Register(ctx, &shopv1.RegisterRequest{
				Username: username,
				Password: loadPassword,
				Email:    username + "@loadtest.local",
			})
			return err
		})
		if err != nil {
			return fixture{}, fmt.Errorf("register %s: %w", username, err)
		}

		var token string
		err = callRPC(ctx, cfg.timeout, col, "Login", "", "", func(ctx context.Context) error {
			resp, err := client.Login(ctx, &shopv1.LoginRequest{Username: username, Password: loadPassword})
			if err != nil {
				return err
			}
			token = resp.Token
			return nil
		})
		if err != nil {
			return fixture{}, fmt.Errorf("login %s: %w", username, err)
		}
		fx.customers = append(fx.customers, customerSession{username: username, token: token})
	}
	return fx, nil
}

// prepareProducts создаёт товары прогона через admin API или, без токена,
// берёт первые товары каталога с ненулевым остатком.
func prepareProducts(ctx context.Context, client shopv1.ShopServiceClient, cfg config, runID string, col *collector, fx *fixture) error {
	if cfg.adminToken != "" {
		for i := 0; i < cfg.products; i++ {
			name := fmt.Sprintf("load product %s-%d", runID, i)
			var product *shopv1.Product
			err := callRPC(shopv1.WithAdminToken(ctx, cfg.adminToken), cfg.timeout, col, "AddProduct", "", "", func(ctx context.Context) error {
				resp, err := client.AddProduct(ctx, &shopv1.AddProductRequest{
					Name:       name,
					Category:   "loadtest",
					PriceMinor: loadPriceMinor,
					Stock:      int32(cfg.stock),
				})
				if err != nil {
					return err
				}
				product = resp.Product
				return nil
			})
			if err != nil {
				return fmt.Errorf("add product %q: %w", name, err)
			}
			fx.products = append(fx.products, product.ID)
			fx.initialStock[product.ID] = int64(product.Stock)
		}
		return nil
	}

	var listed []*shopv1.Product
	err := callRPC(ctx, cfg.timeout, col, "ListProducts", "", "", func(ctx context.Context) error {
		resp, err := client.ListProducts(ctx, &shopv1.ListProductsRequest{})
		if err != nil {
			return err
		}
		listed = resp.Products
		return nil
	})
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	for _, product := range listed {
		if len(fx.products) == cfg.products {
			break
		}
		if product == nil || product.Stock <= 0 {
			continue
		}
		fx.products = append(fx.products, product.ID)
		fx.initialStock[product.ID] = int64(product.Stock)
	}
	if len(fx.products) == 0 {
		return errors.New("catalog has no products in stock; pass -admin-token to create them")
	}
	return nil
}

// verifyStock читает остатки и историю заказов всех клиентов прогона.
// Отменённые заказы в сумму не входят: их количество уже вернулось на склад.
func verifyStock(ctx context.Context, client shopv1.ShopServiceClient, cfg config, fx fixture) (stockReport, error) {
	reserved := make(map[string]int64, len(fx.products))
	placed := make(map[string]int64, len(fx.products))

	for _, customer := range fx.customers {
		callCtx, cancel := context.WithTimeout(shopv1.WithToken(ctx, customer.token), cfg.timeout)
		resp, err := client.OrderHistory(callCtx, &shopv1.OrderHistoryRequest{Limit: historyFetchLimit})
		cancel()
		if err != nil {
			return stockReport{}, fmt.Errorf("order history of %s: %w", customer.username, err)
		}
		for _, entry := range resp.Entries {
			if entry == nil || entry.Order == nil {
				continue
			}
			var target map[string]int64
			switch entry.Order.Status {
			case shopv1.OrderStatusInProgress:
				target = reserved
			case shopv1.OrderStatusPlaced:
				target = placed
			default:
				continue
			}
			for _, item := range entry.Order.GetItems() {
				target[item.ProductID] += int64(item.Qty)
			}
		}
	}

	result := stockReport{Conserved: true}
	for _, productID := range fx.products {
		callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
		resp, err := client.GetProduct(callCtx, &shopv1.GetProductRequest{ProductID: productID})
		cancel()
		if err != nil {
			return stockReport{}, fmt.Errorf("get product %s: %w", productID, err)
		}

		line := productStock{
			ProductID: productID,
			Initial:   fx.initialStock[productID],
			Final:     int64(resp.Product.Stock),
			Reserved:  reserved[productID],
			Placed:    placed[productID],
		}
		line.Conserved = line.Final+line.Reserved+line.Placed == line.Initial
		result.Conserved = result.Conserved && line.Conserved
		result.Products = append(result.Products, line)
	}

	sort.Slice(result.Products, func(i, j int) bool {
		return result.Products[i].ProductID < result.Products[j].ProductID
	})
	return result, nil
}

func printStockReport(out io.Writer, stock stockReport) {
	fmt.Fprintf(out, "stock conservation: conserved=%t\n", stock.Conserved)
	for _, line := range stock.Products {
		fmt.Fprintf(out, "  %s: initial=%d final=%d reserved=%d placed=%d conserved=%t\n",
			line.ProductID,
			line.Initial,
			line.Final,
			line.Reserved,
			line.Placed,
			line.Conserved,
		)
	}
}
