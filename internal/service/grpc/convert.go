package grpcsvc

import (
	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

func toAPICustomer(customer domain.Customer) *shopv1.Customer {
	return &shopv1.Customer{
		ID:       customer.ID,
		Username: customer.Username,
		Email:    customer.Email,
		FullName: customer.FullName,
		Address:  customer.Address,
		Ranking:  customer.Ranking,
	}
}

func toAPICustomers(customers []domain.Customer) []*shopv1.Customer {
	result := make([]*shopv1.Customer, 0, len(customers))
	for _, customer := range customers {
		result = append(result, toAPICustomer(customer))
	}
	return result
}

func toAPIProduct(product domain.Product) *shopv1.Product {
	return &shopv1.Product{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		PriceMinor:  product.PriceMinor,
		Stock:       product.Stock,
	}
}

func toAPIProducts(products []domain.Product) []*shopv1.Product {
	result := make([]*shopv1.Product, 0, len(products))
	for _, product := range products {
		result = append(result, toAPIProduct(product))
	}
	return result
}

func toAPIOrder(order domain.Order) *shopv1.Order {
	items := make([]*shopv1.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, &shopv1.OrderItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			PriceMinor:     item.PriceMinor,
			Qty:            item.Qty,
			LineTotalMinor: item.LineTotal(),
		})
	}

	return &shopv1.Order{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		AmountMinor: order.AmountMinor,
		Items:       items,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt.Unix(),
		UpdatedAt:   order.UpdatedAt.Unix(),
	}
}

func toAPIHistory(entries []cart.HistoryEntry) []*shopv1.HistoryEntry {
	result := make([]*shopv1.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		timeline := make([]*shopv1.TimelineEvent, 0, len(entry.Timeline))
		for _, event := range entry.Timeline {
			timeline = append(timeline, &shopv1.TimelineEvent{
				Type:     event.Type,
				Reason:   event.Reason,
				UnixTime: event.Occurred.Unix(),
			})
		}
		result = append(result, &shopv1.HistoryEntry{
			Order:    toAPIOrder(entry.Order),
			Timeline: timeline,
		})
	}
	return result
}
