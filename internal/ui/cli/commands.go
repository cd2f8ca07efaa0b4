package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

func newApp(stdout, stderr io.Writer) *cli.App {
	var closeLogs func()

	writeFlag := &cli.BoolFlag{
		Name:    "write",
		Aliases: []string{"w"},
		Usage:   "write the result to the file instead of printing it",
	}

	return &cli.App{
		Name:      "nsresolve",
		Usage:     "Resolve, import and tidy PHP class namespaces",
		Version:   versionString,
		Writer:    stdout,
		ErrWriter: stderr,
		// Errors are mapped to exit codes by run.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to nsresolve.toml or nsresolve.yaml",
				EnvVars: []string{"NSRESOLVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "directory to start project detection from (default: working directory)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "ask in the terminal when a class name is ambiguous or needs an alias",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON",
			},
		},
		Before: func(c *cli.Context) error {
			toFile := c.Bool("interactive") || c.Args().First() == "serve"
			closeLogs = configureLogging(c.App.ErrWriter, toFile, c.Bool("verbose"))
			return nil
		},
		After: func(c *cli.Context) error {
			if closeLogs != nil {
				closeLogs()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build or refresh the namespace index and print its status",
				Action: indexCommand,
			},
			{
				Name:      "resolve",
				Usage:     "List the fully qualified names a class name can refer to",
				ArgsUsage: "<class>",
				Action:    resolveCommand,
			},
			{
				Name:      "diagnose",
				Usage:     "Report missing and unused imports",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "text, json or sarif",
						Value:   "text",
					},
				},
				Action: diagnoseCommand,
			},
			{
				Name:      "import",
				Usage:     "Add a use statement for a class",
				ArgsUsage: "<file> <class>",
				Flags: []cli.Flag{
					writeFlag,
					&cli.StringFlag{
						Name:    "alias",
						Aliases: []string{"a"},
						Usage:   "import the class under this alias",
					},
				},
				Action: importCommand,
			},
			{
				Name:      "import-all",
				Usage:     "Import every class the file uses without importing",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{writeFlag},
				Action:    importAllCommand,
			},
			{
				Name:      "expand",
				Usage:     "Replace the class name at a position with its fully qualified name",
				ArgsUsage: "<file> <line> <column>",
				Flags:     []cli.Flag{writeFlag},
				Action:    expandCommand,
			},
			{
				Name:      "sort",
				Usage:     "Sort the file's use statements",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					writeFlag,
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "length, alphabetical or natural (default: imports.sort_mode)",
					},
				},
				Action: sortCommand,
			},
			{
				Name:      "remove-unused",
				Usage:     "Delete use statements the file never references",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{writeFlag},
				Action:    removeUnusedCommand,
			},
			{
				Name:      "namespace",
				Usage:     "Set the file's namespace from composer.json autoload mappings",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{writeFlag},
				Action:    namespaceCommand,
			},
			{
				Name:      "watch",
				Usage:     "Keep the index current and report diagnostics for the given files as they change",
				ArgsUsage: "[file]...",
				Action:    watchCommand,
			},
			{
				Name:  "serve",
				Usage: "Serve MCP tools over stdio",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "allow-writes",
						Usage: "let import_class write files",
					},
				},
				Action: serveCommand,
			},
		},
	}
}
