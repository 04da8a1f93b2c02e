package utils

import (
	"log"
	"os"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// DefaultDaemonAddr はサイドカーで動くX-Rayデーモンのアドレスです
const DefaultDaemonAddr = "127.0.0.1:2000"

// ConfigureTracing はX-Rayを設定します
// 設定に失敗した場合はSDKのデフォルト設定で続行します
func ConfigureTracing() {
	if err := xray.Configure(xray.Config{
		DaemonAddr:     DefaultDaemonAddr,
		ServiceVersion: "1.0.0",
	}); err != nil {
		log.Printf("Failed to configure X-Ray: %v", err)
		if configErr := xray.Configure(xray.Config{}); configErr != nil {
			log.Fatalf("Failed to configure default X-Ray settings: %v", configErr)
		}
	}
	// セグメントの無いコンテキストでパニックさせない
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
}
