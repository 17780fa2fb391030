package main

import (
	"fmt"
	"log"
	"os"

	"github.com/esimov/facemesh/utils"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐  ┌┬┐┌─┐┌─┐┬ ┬
├┤ ├─┤│  ├┤   │││├┤ └─┐├─┤
└  ┴ ┴└─┘└─┘  ┴ ┴└─┘└─┘┴ ┴

MediaPipe face mesh driver.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

func main() {
	log.SetFlags(0)

	root := &cobra.Command{
		Use:           "facemesh",
		Short:         "Detect and draw facial landmarks",
		Long:          fmt.Sprintf(HelpBanner, Version),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(imageCmd(), webcamCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s%s\n",
			utils.DecorateText(fmt.Sprintf("\n%v", err), utils.ErrorMessage),
			utils.DefaultColor,
		)
		os.Exit(1)
	}
}
