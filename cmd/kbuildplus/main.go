// Copyright 2024 The Kbuildplus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/kbuildplus/kbuildplus"
)

var (
	doBooleanConfigs bool
	doRecursive      bool
	doTable          bool
	watchFlag        bool
	defines          []string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbuildplus <directory-or-makefile-or-glob>...",
		Short: "Symbolically evaluate Kbuild makefiles into presence-conditioned artifacts",
		Long: `kbuildplus statically enumerates the compilation units, subdirectories,
composite objects, libraries, host programs, and clean targets a Kbuild tree
would produce, annotating each with a presence condition over CONFIG_* atoms.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRoot,
	}
	cmd.Flags().BoolVar(&doBooleanConfigs, "do_boolean_configs", false,
		"Treat CONFIG_* as two-valued (y/undefined) instead of tristate (y/m/undefined).")
	cmd.Flags().BoolVar(&doRecursive, "do_recursive", false,
		"Descend into subdirectories discovered by the collector.")
	cmd.Flags().BoolVar(&doTable, "do_table", false,
		"Emit each directory's variable symbol table before its results.")
	cmd.Flags().BoolVar(&watchFlag, "watch", false,
		"Re-evaluate whenever a watched Kbuild/Makefile changes.")
	cmd.Flags().StringArrayVar(&defines, "define", nil,
		"Pre-seed a NAME=VALUE assignment as if set at the top of the makefile; may be repeated.")
	// glog registers its flags (-v, --logtostderr, ...) on the standard
	// flag set; expose them on the command as well.
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		glog.Errorf("%v", err)
		os.Exit(1)
	}
	glog.Flush()
}

func runRoot(cmd *cobra.Command, args []string) error {
	roots, err := expandRoots(args)
	if err != nil {
		return err
	}

	newDriver := func() *kbuild.Driver {
		return kbuild.NewDriver(&kbuild.Config{
			DoBooleanConfigs: doBooleanConfigs,
			DoRecursive:      doRecursive,
			DoTable:          doTable,
			Define:           defines,
		})
	}

	if watchFlag {
		stop := make(chan struct{})
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		go func() {
			<-sigCh
			close(stop)
		}()
		w := kbuild.NewWatcher(roots, newDriver, printResults)
		return w.Run(stop)
	}

	d := newDriver()
	if err := d.Run(roots); err != nil {
		return err
	}
	printResults(d.Results())
	return nil
}

// expandRoots resolves each CLI argument as a literal path or, if it
// contains glob metacharacters, a doublestar pattern (e.g.
// "drivers/**/Kbuild"), matching against the current working directory.
func expandRoots(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		if !isGlobPattern(a) {
			out = append(out, a)
			continue
		}
		matches, err := doublestar.FilepathGlob(a)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", a, err)
		}
		if len(matches) == 0 {
			glog.Warningf("pattern %q matched no files", a)
		}
		out = append(out, matches...)
	}
	return out, nil
}

// isGlobPattern reports whether a contains any doublestar metacharacter,
// distinguishing a literal path argument from a pattern to expand.
func isGlobPattern(a string) bool {
	return strings.ContainsAny(a, "*?[{")
}

// printResults renders the Results aggregate (6. "Outputs: the Results
// aggregate") as plain text: one sorted section per set, then the
// presence-condition map.
func printResults(r *kbuild.Results) {
	printSet("compilation units", r.CompilationUnits)
	printSet("library units", r.LibraryUnits)
	printSet("composites", r.Composites)
	printSet("hostprog units", r.HostprogUnits)
	printSet("hostprog composites", r.HostprogComposites)
	printSet("unconfigurable units", r.UnconfigurableUnits)
	printSet("clean files", r.CleanFiles)

	fmt.Println("presence conditions:")
	paths := make([]string, 0, len(r.PresenceConditions))
	for p := range r.PresenceConditions {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Printf("  %s: %s\n", p, r.PresenceConditions[p].String())
	}
}

func printSet(title string, set map[string]bool) {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Printf("%s:\n", title)
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
}
