// Package grpcsvc реализует ShopService поверх движка корзины, каталога и
// учётных записей: аутентификация по сессии, защита административных методов,
// ключи идемпотентности и перевод ошибок в gRPC-статусы.
package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/account"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultHistoryLimit     = 100
	defaultIdempotencyTTL   = 24 * time.Hour
)

// CartEngine покрывает операции корзины, которые нужны транспорту.
type CartEngine interface {
	ActiveOrder(ctx context.Context, customerID string) (domain.Order, error)
	AddItem(ctx context.Context, customerID, productID string, qty int32) (domain.Order, error)
	RemoveItem(ctx context.Context, customerID, productID string) (domain.Order, error)
	PlaceOrder(ctx context.Context, customerID string) (domain.Order, error)
	CancelOrder(ctx context.Context, customerID string) (domain.Order, error)
	OrderHistory(ctx context.Context, customerID string, limit int) ([]cart.HistoryEntry, error)
}

// Catalog читает и редактирует каталог.
type Catalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	Search(ctx context.Context, term string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	AddProduct(ctx context.Context, input catalog.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, input catalog.ProductInput) (domain.Product, error)
	RemoveProduct(ctx context.Context, id string) error
}

// Accounts управляет учётными записями и сессиями.
type Accounts interface {
	Register(ctx context.Context, reg account.Registration) (domain.Customer, error)
	Login(ctx context.Context, username, password string) (domain.Session, domain.Customer, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (domain.Session, error)
	Profile(ctx context.Context, customerID string) (domain.Customer, error)
	ChangePassword(ctx context.Context, customerID, oldPassword, newPassword string) error
	Leaderboard(ctx context.Context, limit int) ([]domain.Customer, error)
}

// Dependencies собирает зависимости ShopService. Idempotency может быть nil:
// тогда ключи идемпотентности игнорируются.
type Dependencies struct {
	Cart        CartEngine
	Catalog     Catalog
	Accounts    Accounts
	Idempotency domain.IdempotencyRepository
	// AdminToken открывает AddProduct, UpdateProduct и RemoveProduct. Пустое значение их закрывает.
	AdminToken     string
	IdempotencyTTL time.Duration
	Logger         *log.Entry
}

// ShopService реализует shopv1.ShopServiceServer.
type ShopService struct {
	shopv1.UnimplementedShopServiceServer

	cart           CartEngine
	catalog        Catalog
	accounts       Accounts
	idempotency    domain.IdempotencyRepository
	adminToken     string
	idempotencyTTL time.Duration
	logger         *log.Entry
	now            func() time.Time
}

// NewShopService конструирует сервис с зависимостями.
func NewShopService(deps Dependencies) *ShopService {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "shop-service")
	}
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &ShopService{
		cart:           deps.Cart,
		catalog:        deps.Catalog,
		accounts:       deps.Accounts,
		idempotency:    deps.Idempotency,
		adminToken:     deps.AdminToken,
		idempotencyTTL: ttl,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func requestRequired() error {
	return status.Error(codes.InvalidArgument, "request is required")
}

// Register создаёт учётную запись.
func (s *ShopService) Register(ctx context.Context, req *shopv1.RegisterRequest) (*shopv1.RegisterResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return withIdempotency(s, ctx, scopeAnonymous, "Register", req, func(ctx context.Context) (*shopv1.RegisterResponse, error) {
		customer, err := s.accounts.Register(ctx, account.Registration{
			Username: req.Username,
			Password: req.Password,
			Email:    req.Email,
			FullName: req.FullName,
			Address:  req.Address,
		})
		if err != nil {
			return nil, toStatus(s.logger, "Register", err)
		}
		return &shopv1.RegisterResponse{Customer: toAPICustomer(customer)}, nil
	})
}

// Login открывает сессию и возвращает её токен.
func (s *ShopService) Login(ctx context.Context, req *shopv1.LoginRequest) (*shopv1.LoginResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	session, customer, err := s.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(s.logger, "Login", err)
	}
	return &shopv1.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Unix(),
		Customer:  toAPICustomer(customer),
	}, nil
}

// Logout закрывает текущую сессию.
func (s *ShopService) Logout(ctx context.Context, _ *shopv1.LogoutRequest) (*shopv1.LogoutResponse, error) {
	token := sessionToken(ctx)
	if token == "" {
		return nil, toStatus(s.logger, "Logout", domain.ErrNotAuthenticated)
	}
	if err := s.accounts.Logout(ctx, token); err != nil {
		return nil, toStatus(s.logger, "Logout", err)
	}
	return &shopv1.LogoutResponse{}, nil
}

func (s *ShopService) GetProfile(ctx context.Context, _ *shopv1.GetProfileRequest) (*shopv1.GetProfileResponse, error) {
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "GetProfile", err)
	}
	customer, err := s.accounts.Profile(ctx, customerID)
	if err != nil {
		return nil, toStatus(s.logger, "GetProfile", err)
	}
	return &shopv1.GetProfileResponse{Customer: toAPICustomer(customer)}, nil
}

func (s *ShopService) ChangePassword(ctx context.Context, req *shopv1.ChangePasswordRequest) (*shopv1.ChangePasswordResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "ChangePassword", err)
	}
	if err := s.accounts.ChangePassword(ctx, customerID, req.OldPassword, req.NewPassword); err != nil {
		return nil, toStatus(s.logger, "ChangePassword", err)
	}
	return &shopv1.ChangePasswordResponse{}, nil
}

// Leaderboard доступен без входа.
func (s *ShopService) Leaderboard(ctx context.Context, req *shopv1.LeaderboardRequest) (*shopv1.LeaderboardResponse, error) {
	limit := defaultLeaderboardLimit
	if req != nil && req.Limit > 0 {
		limit = min(int(req.Limit), maxLeaderboardLimit)
	}
	customers, err := s.accounts.Leaderboard(ctx, limit)
	if err != nil {
		return nil, toStatus(s.logger, "Leaderboard", err)
	}
	return &shopv1.LeaderboardResponse{Customers: toAPICustomers(customers)}, nil
}

func (s *ShopService) ListProducts(ctx context.Context, _ *shopv1.ListProductsRequest) (*shopv1.ListProductsResponse, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "ListProducts", err)
	}
	return &shopv1.ListProductsResponse{Products: toAPIProducts(products)}, nil
}

func (s *ShopService) SearchProducts(ctx context.Context, req *shopv1.SearchProductsRequest) (*shopv1.SearchProductsResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	products, err := s.catalog.Search(ctx, req.Term)
	if err != nil {
		return nil, toStatus(s.logger, "SearchProducts", err)
	}
	return &shopv1.SearchProductsResponse{Products: toAPIProducts(products)}, nil
}

func (s *ShopService) GetProduct(ctx context.Context, req *shopv1.GetProductRequest) (*shopv1.GetProductResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	product, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(s.logger, "GetProduct", err)
	}
	return &shopv1.GetProductResponse{Product: toAPIProduct(product)}, nil
}

// AddProduct требует x-admin-token.
func (s *ShopService) AddProduct(ctx context.Context, req *shopv1.AddProductRequest) (*shopv1.AddProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	if err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(s.logger, "AddProduct", err)
	}
	return withIdempotency(s, ctx, scopeAdmin, "AddProduct", req, func(ctx context.Context) (*shopv1.AddProductResponse, error) {
		product, err := s.catalog.AddProduct(ctx, catalog.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			PriceMinor:  req.PriceMinor,
			Stock:       req.Stock,
		})
		if err != nil {
			return nil, toStatus(s.logger, "AddProduct", err)
		}
		return &shopv1.AddProductResponse{Product: toAPIProduct(product)}, nil
	})
}

// UpdateProduct требует x-admin-token.
func (s *ShopService) UpdateProduct(ctx context.Context, req *shopv1.UpdateProductRequest) (*shopv1.UpdateProductResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	if err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(s.logger, "UpdateProduct", err)
	}
	return withIdempotency(s, ctx, scopeAdmin, "UpdateProduct", req, func(ctx context.Context) (*shopv1.UpdateProductResponse, error) {
		product, err := s.catalog.UpdateProduct(ctx, req.ProductID, catalog.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			PriceMinor:  req.PriceMinor,
			Stock:       req.Stock,
		})
		if err != nil {
			return nil, toStatus(s.logger, "UpdateProduct", err)
		}
		return &shopv1.UpdateProductResponse{Product: toAPIProduct(product)}, nil
	})
}

// RemoveProduct требует x-admin-token.
func (s *ShopService) RemoveProduct(ctx context.Context, req *shopv1.RemoveProductRequest) (*shopv1.RemoveProductResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	if err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(s.logger, "RemoveProduct", err)
	}
	return withIdempotency(s, ctx, scopeAdmin, "RemoveProduct", req, func(ctx context.Context) (*shopv1.RemoveProductResponse, error) {
		if err := s.catalog.RemoveProduct(ctx, req.ProductID); err != nil {
			return nil, toStatus(s.logger, "RemoveProduct", err)
		}
		return &shopv1.RemoveProductResponse{}, nil
	})
}

// GetCart возвращает корзину или FailedPrecondition, если её нет.
func (s *ShopService) GetCart(ctx context.Context, _ *shopv1.GetCartRequest) (*shopv1.GetCartResponse, error) {
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "GetCart", err)
	}
	order, err := s.cart.ActiveOrder(ctx, customerID)
	if err != nil {
		return nil, toStatus(s.logger, "GetCart", err)
	}
	return &shopv1.GetCartResponse{Order: toAPIOrder(order)}, nil
}

func (s *ShopService) AddToCart(ctx context.Context, req *shopv1.AddToCartRequest) (*shopv1.AddToCartResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "AddToCart", err)
	}
	return withIdempotency(s, ctx, customerID, "AddToCart", req, func(ctx context.Context) (*shopv1.AddToCartResponse, error) {
		order, err := s.cart.AddItem(ctx, customerID, req.ProductID, req.Qty)
		if err != nil {
			return nil, toStatus(s.logger, "AddToCart", err)
		}
		return &shopv1.AddToCartResponse{Order: toAPIOrder(order)}, nil
	})
}

func (s *ShopService) RemoveFromCart(ctx context.Context, req *shopv1.RemoveFromCartRequest) (*shopv1.RemoveFromCartResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "RemoveFromCart", err)
	}
	return withIdempotency(s, ctx, customerID, "RemoveFromCart", req, func(ctx context.Context) (*shopv1.RemoveFromCartResponse, error) {
		order, err := s.cart.RemoveItem(ctx, customerID, req.ProductID)
		if err != nil {
			return nil, toStatus(s.logger, "RemoveFromCart", err)
		}
		return &shopv1.RemoveFromCartResponse{Order: toAPIOrder(order)}, nil
	})
}

func (s *ShopService) PlaceOrder(ctx context.Context, req *shopv1.PlaceOrderRequest) (*shopv1.PlaceOrderResponse, error) {
	if req == nil {
		req = &shopv1.PlaceOrderRequest{}
	}
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "PlaceOrder", err)
	}
	return withIdempotency(s, ctx, customerID, "PlaceOrder", req, func(ctx context.Context) (*shopv1.PlaceOrderResponse, error) {
		order, err := s.cart.PlaceOrder(ctx, customerID)
		if err != nil {
			return nil, toStatus(s.logger, "PlaceOrder", err)
		}
		return &shopv1.PlaceOrderResponse{Order: toAPIOrder(order)}, nil
	})
}

func (s *ShopService) CancelOrder(ctx context.Context, req *shopv1.CancelOrderRequest) (*shopv1.CancelOrderResponse, error) {
	if req == nil {
		req = &shopv1.CancelOrderRequest{}
	}
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "CancelOrder", err)
	}
	return withIdempotency(s, ctx, customerID, "CancelOrder", req, func(ctx context.Context) (*shopv1.CancelOrderResponse, error) {
		order, err := s.cart.CancelOrder(ctx, customerID)
		if err != nil {
			return nil, toStatus(s.logger, "CancelOrder", err)
		}
		return &shopv1.CancelOrderResponse{Order: toAPIOrder(order)}, nil
	})
}

// OrderHistory возвращает заказы клиента от новых к старым вместе с timeline.
func (s *ShopService) OrderHistory(ctx context.Context, req *shopv1.OrderHistoryRequest) (*shopv1.OrderHistoryResponse, error) {
	customerID, err := s.authenticate(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "OrderHistory", err)
	}
	limit := defaultHistoryLimit
	if req != nil && req.Limit > 0 {
		limit = int(req.Limit)
	}
	entries, err := s.cart.OrderHistory(ctx, customerID, limit)
	if err != nil {
		return nil, toStatus(s.logger, "OrderHistory", err)
	}
	return &shopv1.OrderHistoryResponse{Entries: toAPIHistory(entries)}, nil
}

func (s *ShopService) GetVersion(context.Context, *shopv1.GetVersionRequest) (*shopv1.GetVersionResponse, error) {
	v, c, d := version.Info()
	return &shopv1.GetVersionResponse{Version: v, Commit: c, BuildDate: d}, nil
}

var _ shopv1.ShopServiceServer = (*ShopService)(nil)
