//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/daemon"
	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
	"github.com/eliteGoblin/focusd/sigwatch/internal/usecase"
	"github.com/eliteGoblin/focusd/sigwatch/test/fixtures"
)

const appExe = "/opt/app/bin/app"

// instance is one simulated application process sharing the config dir.
type instance struct {
	pid      int
	pm       *fixtures.FakeProcessManager
	windows  *fixtures.RecordingWindowManager
	notifier domain.ConfigNotifier
	state    *daemon.SignalState
}

func startInstance(dir string, pid int, notifier domain.ConfigNotifier) *instance {
	inst := &instance{
		pid:      pid,
		pm:       fixtures.NewFakeProcessManager(pid, appExe),
		windows:  fixtures.NewRecordingWindowManager(),
		notifier: notifier,
		state:    daemon.NewSignalState(),
	}
	err := inst.state.Setup(daemon.SetupDeps{
		Dir:        dir,
		Config:     daemon.DefaultWatcherConfig(),
		Dispatcher: usecase.NewDispatcher(inst.pm, inst.windows, zap.NewNop()),
		Notifier:   notifier,
		Logger:     zap.NewNop(),
	})
	Expect(err).NotTo(HaveOccurred())
	return inst
}

// newProducer builds a launch that only writes to the signal file.
func newProducer(dir string, pm domain.ProcessManager) *usecase.Signaler {
	state := daemon.NewSignalState()
	store := infra.NewSignalStoreInDir(dir, zap.NewNop())
	Expect(store.Ensure()).To(Succeed())
	Expect(state.Init(store, nil)).To(Succeed())
	return usecase.NewSignaler(state, pm, zap.NewNop())
}

var _ = Describe("Signal file", func() {
	var (
		dir       string
		notifierA *fixtures.CountingNotifier
		notifierB *fixtures.CountingNotifier
		a, b      *instance
		launchPM  *fixtures.FakeProcessManager
		producer  *usecase.Signaler
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "sigwatch-integration-*")
		Expect(err).NotTo(HaveOccurred())

		notifierA = &fixtures.CountingNotifier{}
		notifierB = &fixtures.CountingNotifier{}
		a = startInstance(dir, 1001, notifierA)
		b = startInstance(dir, 1002, notifierB)

		launchPM = fixtures.NewFakeProcessManager(3000, appExe)
		launchPM.AddProcess(a.pid, appExe)
		launchPM.AddProcess(b.pid, appExe)
		producer = newProducer(dir, launchPM)
	})

	AfterEach(func() {
		Expect(a.state.Close()).To(Succeed())
		Expect(b.state.Close()).To(Succeed())
		os.RemoveAll(dir)
	})

	Describe("RequestFocus", func() {
		Context("when the target is a live instance", func() {
			It("should focus only that instance, exactly once", func() {
				ok, err := producer.RequestFocus(uint32(b.pid))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())

				Eventually(b.windows.Calls, 2*time.Second, 5*time.Millisecond).Should(Equal([]string{
					"unminimize:main", "show:main", "set_focus:main",
				}))
				Consistently(b.windows.FocusSequences, 200*time.Millisecond).Should(Equal(1))
				Expect(a.windows.Calls()).To(BeEmpty())

				// A recognized focus request is not a config change
				Expect(notifierA.Count()).To(BeZero())
				Expect(notifierB.Count()).To(BeZero())
			})
		})

		Context("when the PID was recycled by another program", func() {
			It("should return false and leave the file untouched", func() {
				launchPM.Kill(b.pid)
				launchPM.AddProcess(b.pid, "/usr/bin/other")

				ok, err := producer.RequestFocus(uint32(b.pid))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				data, err := os.ReadFile(filepath.Join(dir, domain.SignalFileName))
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(BeEmpty())

				Consistently(b.windows.Calls, 200*time.Millisecond).Should(BeEmpty())
			})
		})
	})

	Describe("NotifyConfigChanged", func() {
		It("should notify every watcher exactly once per touch", func() {
			// Give the touch a size change to observe
			Expect(os.WriteFile(filepath.Join(dir, domain.SignalFileName), []byte("x"), 0600)).To(Succeed())
			Eventually(notifierA.Count, 2*time.Second).Should(Equal(1))
			Eventually(notifierB.Count, 2*time.Second).Should(Equal(1))

			Expect(producer.NotifyConfigChanged()).To(Succeed())

			Eventually(notifierA.Count, 2*time.Second).Should(Equal(2))
			Eventually(notifierB.Count, 2*time.Second).Should(Equal(2))
			Consistently(notifierA.Count, 200*time.Millisecond).Should(Equal(2))
			Consistently(notifierB.Count, 200*time.Millisecond).Should(Equal(2))
		})
	})
})

var _ = Describe("Config store reload", func() {
	var (
		dir      string
		store    *infra.EncryptedConfigStore
		received chan []domain.ConfigChange
		watcher  *instance
		service  *usecase.ConfigService
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "sigwatch-config-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.EnsureKey(infra.NewFileKeyProvider(dir))
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedConfigStore(dir, key)
		Expect(err).NotTo(HaveOccurred())

		received = make(chan []domain.ConfigChange, 8)
		reloader := usecase.NewConfigReloader(store, func(c []domain.ConfigChange) { received <- c }, zap.NewNop())
		Expect(reloader.Prime()).To(Succeed())
		watcher = startInstance(dir, 2001, reloader)

		pm := fixtures.NewFakeProcessManager(3001, appExe)
		service = usecase.NewConfigService(store, newProducer(dir, pm), zap.NewNop())
	})

	AfterEach(func() {
		Expect(watcher.state.Close()).To(Succeed())
		store.Close()
		os.RemoveAll(dir)
	})

	It("should deliver each write to the watching instance", func() {
		// Make the first touch a size change
		Expect(os.WriteFile(filepath.Join(dir, domain.SignalFileName), []byte("x"), 0600)).To(Succeed())
		Consistently(received, 150*time.Millisecond).ShouldNot(Receive())

		id, ok, err := service.Set("theme", "dark")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		var changes []domain.ConfigChange
		Eventually(received, 2*time.Second).Should(Receive(&changes))
		Expect(changes).To(HaveLen(1))
		Expect(changes[0].Key).To(Equal("theme"))
		Expect(changes[0].CfgID).To(Equal(id))
	})
})
