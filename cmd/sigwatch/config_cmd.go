package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/usecase"
)

var changesSince int64

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write the shared config store",
	Long: `Manages the encrypted key/value store shared by all instances. Every
write signals running instances to reload.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Insert or update the single row with key",
	Args:  cobra.ExactArgs(2),
	RunE: withConfigService(func(svc *usecase.ConfigService, args []string) error {
		id, ok, err := svc.Set(args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q has several rows; use rm and add", args[0])
		}
		fmt.Println(id)
		return nil
	}),
}

var configAddCmd = &cobra.Command{
	Use:   "add <key> <value>",
	Short: "Add a row even if key exists",
	Args:  cobra.ExactArgs(2),
	RunE: withConfigService(func(svc *usecase.ConfigService, args []string) error {
		id, err := svc.Add(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}),
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print rows with key",
	Args:  cobra.ExactArgs(1),
	RunE: withConfigService(func(svc *usecase.ConfigService, args []string) error {
		items, err := svc.Get(args[0])
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("key %q not found", args[0])
		}
		printItems(items)
		return nil
	}),
}

var configRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a row by id",
	Args:  cobra.ExactArgs(1),
	RunE: withConfigService(func(svc *usecase.ConfigService, args []string) error {
		removed, err := svc.Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no row with id %s", args[0])
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	}),
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all rows",
	Args:  cobra.NoArgs,
	RunE: withConfigService(func(svc *usecase.ConfigService, args []string) error {
		items, err := svc.List()
		if err != nil {
			return err
		}
		printItems(items)
		return nil
	}),
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print the change log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.openConfigStore()
		if err != nil {
			return err
		}
		defer store.Close()

		changes, err := store.ChangesSince(changesSince)
		if err != nil {
			return err
		}
		for _, c := range changes {
			fmt.Printf("%d\t%s\t%s\t%s\n", c.ID, formatUnix(c.CTime), c.Key, c.CfgID)
		}
		return nil
	},
}

// withConfigService opens the store and a producer for the duration of fn.
func withConfigService(fn func(svc *usecase.ConfigService, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.openConfigStore()
		if err != nil {
			return err
		}
		defer store.Close()

		signaler, err := a.producer()
		if err != nil {
			return err
		}
		return fn(usecase.NewConfigService(store, signaler, a.logger), args)
	}
}

func printItems(items []domain.ConfigItem) {
	for _, it := range items {
		fmt.Printf("%s\t%s\t%s\t(updated %s)\n", it.ID, it.Key, it.Value, formatUnix(it.UpdatedAt))
	}
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
