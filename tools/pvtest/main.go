// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command pvtest runs polyval feature files.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homelight/polyval/config"
	"github.com/homelight/polyval/pvtesting"
)

var errFailures = errors.New("some scenarios failed")

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "pvtest filename...",
		Short:         "Run polyval feature files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx := pvtesting.Context{
				HeapLimit: cfg.HeapLimit,
				Logger:    logger,
			}
			encounteredFailure := false
			for i, filename := range args {
				if 0 < i {
					fmt.Fprintln(out)
				}
				if ok := runFeature(out, logger, filename, ctx); !ok {
					encounteredFailure = true
				}
			}
			if encounteredFailure {
				return errFailures
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().Int("heap-limit", 0, "bytes live on a scenario's heap, 0 for unlimited")
	cmd.Flags().BoolP("verbose", "v", false, "log allocations")
	cmd.SetOut(out)
	return cmd
}

func runFeature(out io.Writer, logger *zap.Logger, filename string, ctx pvtesting.Context) bool {
	// open doc
	file, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(out, "%s\n", filename)
		fmt.Fprintf(out, "FAIL\t%s\n", err)
		return false
	}
	defer file.Close()

	// read feature
	scenarios, err := pvtesting.ReadFeature(bufio.NewReader(file), filename)
	if err != nil {
		fmt.Fprintf(out, "%s\n", filename)
		fmt.Fprintf(out, "FAIL\t%s\n", err)
		return false
	}

	// run scenarios
	ok := true
	for _, s := range scenarios {
		logger.Debug("running scenario", zap.String("feature", filename), zap.String("scenario", s.Name))
		if err := s.Run(ctx); err != nil {
			fmt.Fprintf(out, "%s\n", s.Name)
			fmt.Fprintf(out, "FAIL\t%s\n", err)
			ok = false
		}
	}
	if ok {
		fmt.Fprintf(out, "ok\t%s\t%d scenarios\n", filename, len(scenarios))
	}
	return ok
}
