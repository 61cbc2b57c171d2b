package catalog

// SampleProducts: демонстрационный каталог, 25 товаров в пяти категориях.
var SampleProducts = []ProductInput{
	{Name: "iPhone 15 Pro", Description: "Latest Apple iPhone with A17 Pro chip", PriceMinor: 99999, Stock: 50, Category: "Electronics"},
	{Name: "Samsung Galaxy S24", Description: "Premium Android smartphone with AI features", PriceMinor: 84999, Stock: 30, Category: "Electronics"},
	{Name: "MacBook Air M3", Description: "Lightweight laptop with M3 chip", PriceMinor: 129999, Stock: 25, Category: "Electronics"},
	{Name: "iPad Pro", Description: "Professional tablet for creativity and productivity", PriceMinor: 79999, Stock: 40, Category: "Electronics"},
	{Name: "Sony WH-1000XM5", Description: "Premium noise-canceling headphones", PriceMinor: 34999, Stock: 75, Category: "Electronics"},

	{Name: "Nike Air Max 270", Description: "Comfortable running shoes", PriceMinor: 12999, Stock: 100, Category: "Clothing"},
	{Name: "Levi's 501 Jeans", Description: "Classic denim jeans", PriceMinor: 7999, Stock: 80, Category: "Clothing"},
	{Name: "North Face Jacket", Description: "Waterproof outdoor jacket", PriceMinor: 19999, Stock: 45, Category: "Clothing"},
	{Name: "Adidas Hoodie", Description: "Comfortable cotton hoodie", PriceMinor: 5999, Stock: 60, Category: "Clothing"},
	{Name: "Ray-Ban Sunglasses", Description: "Classic aviator sunglasses", PriceMinor: 14999, Stock: 35, Category: "Clothing"},

	{Name: "Clean Code", Description: "A Handbook of Agile Software Craftsmanship", PriceMinor: 3999, Stock: 200, Category: "Books"},
	{Name: "Design Patterns", Description: "Elements of Reusable Object-Oriented Software", PriceMinor: 4499, Stock: 150, Category: "Books"},
	{Name: "Effective Java", Description: "Best practices for Java programming", PriceMinor: 4299, Stock: 180, Category: "Books"},
	{Name: "The Pragmatic Programmer", Description: "From journeyman to master", PriceMinor: 4199, Stock: 170, Category: "Books"},
	{Name: "Spring in Action", Description: "Comprehensive guide to Spring Framework", PriceMinor: 4599, Stock: 140, Category: "Books"},

	{Name: "Dyson V15 Vacuum", Description: "Powerful cordless vacuum cleaner", PriceMinor: 64999, Stock: 20, Category: "Home & Garden"},
	{Name: "Instant Pot Duo", Description: "7-in-1 electric pressure cooker", PriceMinor: 8999, Stock: 55, Category: "Home & Garden"},
	{Name: "Plant Grow Light", Description: "LED light for indoor plants", PriceMinor: 2999, Stock: 90, Category: "Home & Garden"},
	{Name: "Coffee Maker", Description: "Programmable drip coffee maker", PriceMinor: 7999, Stock: 40, Category: "Home & Garden"},
	{Name: "Air Purifier", Description: "HEPA filter air purifier", PriceMinor: 19999, Stock: 30, Category: "Home & Garden"},

	{Name: "Yoga Mat", Description: "Non-slip exercise yoga mat", PriceMinor: 2499, Stock: 120, Category: "Sports & Outdoors"},
	{Name: "Dumbbells Set", Description: "Adjustable weight dumbbells", PriceMinor: 14999, Stock: 35, Category: "Sports & Outdoors"},
	{Name: "Camping Tent", Description: "4-person waterproof camping tent", PriceMinor: 29999, Stock: 25, Category: "Sports & Outdoors"},
	{Name: "Mountain Bike", Description: "21-speed mountain bicycle", PriceMinor: 59999, Stock: 15, Category: "Sports & Outdoors"},
	{Name: "Water Bottle", Description: "Insulated stainless steel bottle", PriceMinor: 1999, Stock: 200, Category: "Sports & Outdoors"},
}
