// Example tests for the appkey package demonstrating the derivation rules
package appkey_test

import (
	"fmt"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
)

// Example shows how browser titles are labeled with a site domain.
func Example() {
	key := appkey.Derive("chrome.exe", "Lo-fi beats - YouTube - Google Chrome")
	fmt.Printf("AppKey: %s\n", key.AppKey)
	fmt.Printf("URL: %s\n", key.URL)

	key = appkey.Derive("Code.exe", "main.go - Visual Studio Code")
	fmt.Printf("AppKey: %s\n", key.AppKey)

	// Output:
	// AppKey: chrome.exe (youtube.com)
	// URL: youtube.com
	// AppKey: Code.exe
}
