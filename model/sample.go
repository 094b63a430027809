package model

// SamplePoints returns the demo data set of ten exchange locations. A fresh
// slice is returned on every call.
func SamplePoints() []Point {
	return []Point{
		{ID: "Binance", Latitude: 35.6762, Longitude: 139.6503, Category: CategoryAWS, Region: "ap-northeast-1"},
		{ID: "Coinbase", Latitude: 37.7749, Longitude: -122.4194, Category: CategoryGCP, Region: "us-west1"},
		{ID: "OKX", Latitude: 22.3193, Longitude: 114.1694, Category: CategoryAWS, Region: "ap-east-1"},
		{ID: "Bybit", Latitude: 1.3521, Longitude: 103.8198, Category: CategoryAWS, Region: "ap-southeast-1"},
		{ID: "Kraken", Latitude: 51.5074, Longitude: -0.1278, Category: CategoryAzure, Region: "uk-south"},
		{ID: "Deribit", Latitude: 52.3676, Longitude: 4.9041, Category: CategoryGCP, Region: "europe-west4"},
		{ID: "Bitfinex", Latitude: 40.7128, Longitude: -74.006, Category: CategoryAWS, Region: "us-east-1"},
		{ID: "Gate.io", Latitude: 39.9042, Longitude: 116.4074, Category: CategoryAzure, Region: "china-east"},
		{ID: "Huobi", Latitude: -33.8688, Longitude: 151.2093, Category: CategoryAWS, Region: "ap-southeast-2"},
		{ID: "KuCoin", Latitude: 25.033, Longitude: 121.5654, Category: CategoryGCP, Region: "asia-east1"},
	}
}
