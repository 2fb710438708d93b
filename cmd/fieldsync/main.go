package main

import (
	"fmt"
	"os"

	"github.com/MKhiriev/go-field-sync/internal/cli"
	"github.com/MKhiriev/go-field-sync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	root := cli.NewRootCommand(models.NewAppBuildInfo(buildVersion, buildDate, buildCommit))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
