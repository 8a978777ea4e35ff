package main

import (
	tapshopify "github.com/streamhouse/tap-shopify"
	driver "github.com/streamhouse/tap-shopify/drivers/shopify/internal"
)

func main() {
	tapshopify.RegisterDriver(&driver.Shopify{})
}
