package shopv1

// Статусы заказа в API совпадают со строковыми значениями домена.
const (
	OrderStatusInProgress = "in_progress"
	OrderStatusPlaced     = "placed"
	OrderStatusCancelled  = "cancelled"
)

type Customer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Address  string `json:"address,omitempty"`
	Ranking  int64  `json:"ranking"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int32  `json:"stock"`
}

type OrderItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	PriceMinor     int64  `json:"price_minor"`
	Qty            int32  `json:"qty"`
	LineTotalMinor int64  `json:"line_total_minor"`
}

type Order struct {
	ID          string       `json:"id"`
	CustomerID  string       `json:"customer_id"`
	Status      string       `json:"status"`
	AmountMinor int64        `json:"amount_minor"`
	Items       []*OrderItem `json:"items"`
	Version     int64        `json:"version"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

// GetItems возвращает позиции заказа; безопасен для nil.
func (o *Order) GetItems() []*OrderItem {
	if o == nil {
		return nil
	}
	return o.Items
}

type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

type HistoryEntry struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Address  string `json:"address,omitempty"`
}

type RegisterResponse struct {
	Customer *Customer `json:"customer"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt int64     `json:"expires_at"`
	Customer  *Customer `json:"customer"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetProfileRequest struct{}

type GetProfileResponse struct {
	Customer *Customer `json:"customer"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordResponse struct{}

type LeaderboardRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type LeaderboardResponse struct {
	Customers []*Customer `json:"customers"`
}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type SearchProductsRequest struct {
	Term string `json:"term"`
}

type SearchProductsResponse struct {
	Products []*Product `json:"products"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type GetProductResponse struct {
	Product *Product `json:"product"`
}

type AddProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int32  `json:"stock"`
}

type AddProductResponse struct {
	Product *Product `json:"product"`
}

type UpdateProductRequest struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int32  `json:"stock"`
}

type UpdateProductResponse struct {
	Product *Product `json:"product"`
}

type RemoveProductRequest struct {
	ProductID string `json:"product_id"`
}

type RemoveProductResponse struct{}

type GetCartRequest struct{}

type GetCartResponse struct {
	Order *Order `json:"order"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type AddToCartResponse struct {
	Order *Order `json:"order"`
}

type RemoveFromCartRequest struct {
	ProductID string `json:"product_id"`
}

type RemoveFromCartResponse struct {
	Order *Order `json:"order"`
}

type PlaceOrderRequest struct{}

type PlaceOrderResponse struct {
	Order *Order `json:"order"`
}

type CancelOrderRequest struct{}

type CancelOrderResponse struct {
	Order *Order `json:"order"`
}

type OrderHistoryRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type OrderHistoryResponse struct {
	Entries []*HistoryEntry `json:"entries"`
}

type GetVersionRequest struct{}

type GetVersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}
