package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/config"
	"github.com/vyrodovalexey/inventory-store/internal/logging"
	"github.com/vyrodovalexey/inventory-store/internal/store"
)

// app carries state shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	file     string
	logLevel string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "inventory",
		Short:         "Manage the stock held in an inventory file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.file, "file", "f", "",
		"inventory file (default $"+config.EnvInventoryFile+" or "+config.DefaultInventoryFile+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error (default $"+config.EnvLogLevel+")")

	root.AddCommand(
		newAddCmd(a),
		newRemoveCmd(a),
		newQtyCmd(a),
		newLowCmd(a),
		newReportCmd(a),
		newDemoCmd(a),
	)
	return root
}

// setup resolves configuration and the logger. Flags win over the environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.file == "" {
		a.file = cfg.InventoryFile
	}
	if a.logLevel == "" {
		a.logLevel = cfg.LogLevel
	}

	if a.logger == nil {
		logger, err := logging.New(a.logLevel, logging.EncodingConsole, "stderr")
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		a.logger = logger
	}

	a.logger.Debug("command started",
		zap.String("command", cmd.Name()),
		zap.String("file", a.file),
	)
	return nil
}

// open loads the inventory file; a missing file gives an empty inventory.
func (a *app) open() (*store.Inventory, error) {
	inv := store.NewInventory(store.WithLogger(a.logger))
	if err := inv.Load(a.file); err != nil {
		return nil, err
	}
	return inv, nil
}

func (a *app) save(inv *store.Inventory) error {
	if err := inv.Save(a.file); err != nil {
		return err
	}
	a.logger.Debug("inventory saved", zap.String("file", a.file), zap.Int("items", inv.Len()))
	return nil
}

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add ITEM QTY",
		Short:   "Add QTY units of ITEM (negative quantities are allowed)",
		Example: "  inventory add banana -2\n  inventory add -- -5 1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := store.ParseQuantity(args[1])
			if err != nil {
				return err
			}

			inv, err := a.open()
			if err != nil {
				return err
			}

			var journal store.Journal
			if err := inv.Add(args[0], qty, &journal); err != nil {
				return err
			}
			if err := a.save(inv); err != nil {
				return err
			}

			if record := journal.Last(); record != "" {
				fmt.Fprintln(cmd.OutOrStdout(), record)
			}
			return nil
		},
	}
	// Arguments after ITEM are positional, so "-2" is a quantity.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove ITEM QTY",
		Short: "Remove QTY units of ITEM, deleting it once stock reaches zero",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := store.ParseQuantity(args[1])
			if err != nil {
				return err
			}

			inv, err := a.open()
			if err != nil {
				return err
			}

			item := args[0]
			outcome, err := inv.Remove(item, qty)
			if err != nil {
				return err
			}
			if outcome != store.OutcomeAbsent {
				if err := a.save(inv); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d left\n", item, outcome, inv.Qty(item))
			return nil
		},
	}
	// Arguments after ITEM are positional, so "-2" is a quantity.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newQtyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "qty ITEM",
		Short: "Print the quantity held for ITEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.open()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), inv.Qty(args[0]))
			return nil
		},
	}
}

func newLowCmd(a *app) *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:   "low",
		Short: "List items below the low-stock threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.LowStockThreshold
			}

			inv, err := a.open()
			if err != nil {
				return err
			}
			for _, item := range inv.LowItems(threshold) {
				fmt.Fprintln(cmd.OutOrStdout(), item)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&threshold, "threshold", "t", store.DefaultLowStockThreshold,
		"report items whose quantity is below this value (default $"+config.EnvLowStockThreshold+")")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print every item and its quantity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := a.open()
			if err != nil {
				return err
			}
			return inv.Report(cmd.OutOrStdout())
		},
	}
}

func newDemoCmd(a *app) *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the demonstration sequence against a fresh inventory",
		Long: "Adds apple 10, banana -2 and 123 \"ten\", then removes apple 3 and orange 1,\n" +
			"prints the apple stock and low items, saves, reloads and prints the report.\n" +
			"The non-numeric quantity stops the run unless --keep-going is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.demo(cmd, keepGoing)
		},
	}

	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "log invalid steps and continue")
	return cmd
}

func (a *app) demo(cmd *cobra.Command, keepGoing bool) error {
	out := cmd.OutOrStdout()
	inv := store.NewInventory(store.WithLogger(a.logger))

	adds := []struct {
		item string
		qty  string
	}{
		{"apple", "10"},
		{"banana", "-2"},
		{"123", "ten"},
	}
	for _, step := range adds {
		qty, err := store.ParseQuantity(step.qty)
		if err == nil {
			err = inv.Add(step.item, qty, nil)
		}
		if err != nil {
			err = fmt.Errorf("add %s %q: %w", step.item, step.qty, err)
			if !keepGoing {
				return err
			}
			a.logger.Warn("demo step failed", zap.Error(err))
		}
	}

	for _, step := range []store.Entry{{Item: "apple", Quantity: 3}, {Item: "orange", Quantity: 1}} {
		if _, err := inv.Remove(step.Item, step.Quantity); err != nil {
			return fmt.Errorf("remove %s %d: %w", step.Item, step.Quantity, err)
		}
	}

	fmt.Fprintln(out, "Apple stock:", inv.Qty("apple"))
	fmt.Fprintf(out, "Low items: [%s]\n", strings.Join(inv.LowItems(a.cfg.LowStockThreshold), " "))

	if err := a.save(inv); err != nil {
		return err
	}
	if err := inv.Load(a.file); err != nil {
		return err
	}
	return inv.Report(out)
}
