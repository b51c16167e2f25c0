package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository/postgres"
)

// seed-order stands in for checkout: it creates one Pending order with its
// creation entry so the lifecycle can be exercised.
func main() {
	sellerFlag := flag.String("seller-id", "", "Seller UUID that owns the order (required)")
	trackingFlag := flag.String("tracking", "", "Tracking number; generated when empty")
	productFlag := flag.String("product", "Air Force 1 '07", "Product name")
	quantityFlag := flag.Int("quantity", 1, "Quantity")
	priceFlag := flag.String("unit-price", "12500.00", "Final unit price")
	discountFlag := flag.String("discount", "0", "Discount on the order total")
	customerFlag := flag.String("customer", "Test Customer", "Customer full names")
	emailFlag := flag.String("email", "", "Customer email")
	phoneFlag := flag.String("phone", "", "Customer phone")
	addressFlag := flag.String("address", `{"city":"Nairobi","street":"Moi Avenue"}`, "Delivery address as a JSON object")
	flag.Parse()

	sellerID, err := uuid.Parse(strings.TrimSpace(*sellerFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: --seller-id must be a seller UUID (see create-seller)\n")
		os.Exit(1)
	}
	if *quantityFlag < 1 {
		fmt.Fprintf(os.Stderr, "Error: --quantity must be at least 1\n")
		os.Exit(1)
	}
	unitPrice, err := decimal.NewFromString(*priceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --unit-price: %v\n", err)
		os.Exit(1)
	}
	discount, err := decimal.NewFromString(*discountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --discount: %v\n", err)
		os.Exit(1)
	}
	var address map[string]interface{}
	if err := json.Unmarshal([]byte(*addressFlag), &address); err != nil {
		fmt.Fprintf(os.Stderr, "Error: --address must be a JSON object: %v\n", err)
		os.Exit(1)
	}

	tracking := strings.TrimSpace(*trackingFlag)
	if tracking == "" {
		tracking = "KS-" + strings.ToUpper(uuid.NewString()[:8])
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	ctx := context.Background()

	if _, err := repos.Seller.GetByID(ctx, sellerID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find seller: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	total := unitPrice.Mul(decimal.NewFromInt(int64(*quantityFlag))).Sub(discount)
	const createdNote = "Order created"

	order := &domain.Order{
		TrackingNumber:  tracking,
		SellerID:        sellerID,
		Status:          domain.OrderStatusPending,
		ProductName:     strings.TrimSpace(*productFlag),
		Quantity:        *quantityFlag,
		FinalUnitPrice:  unitPrice,
		FinalTotalPrice: total,
		Discount:        discount,
		Customer: domain.Customer{
			FullNames: strings.TrimSpace(*customerFlag),
			Email:     strings.TrimSpace(*emailFlag),
			Phone:     strings.TrimSpace(*phoneFlag),
		},
		Address:   address,
		CreatedAt: now,
		UpdatedAt: now,
		Processes: []domain.ProcessEntry{{
			Status:  domain.OrderStatusPending,
			Note:    createdNote,
			Process: domain.FormatProcess(domain.OrderStatusPending, createdNote),
			Date:    now,
		}},
	}

	if err := repos.Order.Create(ctx, order); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create order: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Order created successfully!\n\n")
	fmt.Printf("Order ID: %s\n", order.ID.String())
	fmt.Printf("Tracking Number: %s\n", order.TrackingNumber)
	fmt.Printf("Status: %s (version %d)\n", order.Status, order.Version)
	fmt.Printf("Total: %s\n", order.FinalTotalPrice.StringFixed(2))
}
