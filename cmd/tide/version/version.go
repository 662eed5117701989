package version

import (
	"fmt"

	"github.com/tidelake/tide/internal/version"
)

func Run() {
	fmt.Printf("tide version %s\n", version.Version)
	fmt.Printf("  commit: %s\n", version.GitCommit)
	fmt.Printf("  built:  %s\n", version.BuildTime)
}
