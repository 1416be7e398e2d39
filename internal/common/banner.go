package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the harness banner
func PrintBanner() {
	banner.Print("Smoke", GetVersion())
}
