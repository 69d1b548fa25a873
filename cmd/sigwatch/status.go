package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
	"github.com/eliteGoblin/focusd/sigwatch/internal/usecase"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show signal file and primary instance state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("\n=== sigwatch Status ===")
	fmt.Printf("Config dir:  %s\n", a.paths.Dir)
	fmt.Printf("Signal file: %s\n", a.paths.SignalFile)

	data, err := os.ReadFile(a.paths.SignalFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("Signal:      not created yet")
	case err != nil:
		fmt.Printf("Signal:      unreadable (%v)\n", err)
	default:
		fmt.Printf("Signal:      %s\n", DescribeSignal(data, a.cfg.MaxMessageAge(), time.Now()))
	}

	registry := infra.NewFileRegistry(a.paths.Dir)
	primary, err := registry.Primary()
	switch {
	case errors.Is(err, domain.ErrNotRegistered):
		fmt.Println("Primary:     none")
	case err != nil:
		fmt.Printf("Primary:     unreadable (%v)\n", err)
	default:
		signaler := usecase.NewSignaler(a.state, a.pm, a.logger)
		alive := "gone or another program"
		if signaler.IsValidTarget(int64(primary.PID)) {
			alive = "running"
		}
		fmt.Printf("Primary:     PID %d, %s, started %s (%s)\n",
			primary.PID, alive, primary.StartedAt.Format(time.RFC3339), primary.AppVersion)
	}

	if infra.NewFileKeyProvider(a.paths.Dir).KeyExists() {
		if store, err := a.openConfigStore(); err == nil {
			fmt.Println(describeConfigRows(store))
			store.Close()
		} else {
			fmt.Printf("Config:      unavailable (%v)\n", err)
		}
	}

	fmt.Println("=======================")
	return nil
}

// describeConfigRows reports the row count of the config store.
func describeConfigRows(store interface {
	List() ([]domain.ConfigItem, error)
}) string {
	items, err := store.List()
	if err != nil {
		return fmt.Sprintf("Config:      unreadable (%v)", err)
	}
	return fmt.Sprintf("Config rows: %d", len(items))
}

// DescribeSignal classifies signal file content for display.
func DescribeSignal(data []byte, maxAge time.Duration, now time.Time) string {
	msg, err := message.Decode(data)
	if errors.Is(err, message.ErrEmpty) {
		return "empty (touch)"
	}
	if err != nil {
		return fmt.Sprintf("corrupt (%v)", err)
	}

	desc := msg.Action.Tag()
	if f, ok := msg.Action.(message.FocusAction); ok {
		desc = fmt.Sprintf("focus target=%d", f.Target)
	}
	age := msg.Age(now)
	if !msg.IsValid(maxAge, now) {
		return fmt.Sprintf("stale %s (age %s)", desc, age)
	}
	return fmt.Sprintf("%s (age %s)", desc, age)
}
