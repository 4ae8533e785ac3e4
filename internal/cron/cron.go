package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailresponder/config"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/tracing"
)

const (
	JobPollMailbox = "poll_mailbox"

	LeaseName = "mailresponder-cron-leader"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// Poller runs one mailbox cycle.
type Poller interface {
	Run(ctx context.Context) (bool, error)
}

type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	k8s    kubernetes.Interface
	poller Poller

	mutex  sync.Mutex
	cron   *cronv3.Cron
	jobIDs map[string]cronv3.EntryID
	cancel context.CancelFunc
	stopCh chan struct{}
	once   sync.Once
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, poller Poller) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		poller: poller,
		jobIDs: make(map[string]cronv3.EntryID),
		stopCh: make(chan struct{}),
	}
}

// Start begins polling. With a Kubernetes client only the elected leader polls; without one,
// or with LOCAL_DEV set, it starts in local mode.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || cm.cfg.AppConfig.LocalDev {
		cm.log.Info("Starting cron manager in local mode")
		return cm.StartCron()
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		ReleaseOnCancel: true,
		LeaseDuration:   LeaseDuration,
		RenewDeadline:   RenewDeadline,
		RetryPeriod:     RetryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				if err := cm.StartCron(); err != nil {
					cm.log.Errorf("Could not start crons after winning leadership: %v", err)
				}
			},
			OnStoppedLeading: func() {
				cm.log.Info("Leader lost - stopping crons")
				cm.stopCron()
			},
			OnNewLeader: func(identity string) {
				cm.log.Infof("New leader elected: %s", identity)
			},
		},
	})
	if err != nil {
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		return cm.StartCron()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cm.mutex.Lock()
	cm.cancel = cancel
	cm.mutex.Unlock()

	go le.Run(ctx)
	return nil
}

// StartCron registers the poll job and starts the scheduler.
func (cm *CronManager) StartCron() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.cron != nil {
		return nil
	}

	cm.log.Info("Starting cron manager")
	c := cronv3.New(
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// Stop halts polling and waits for a running cycle to finish.
func (cm *CronManager) Stop() {
	cm.mutex.Lock()
	cancel := cm.cancel
	cm.mutex.Unlock()
	if cancel != nil {
		cancel()
	}

	cm.stopCron()
	cm.once.Do(func() { close(cm.stopCh) })
}

func (cm *CronManager) stopCron() {
	cm.mutex.Lock()
	c := cm.cron
	cm.cron = nil
	cm.mutex.Unlock()

	if c != nil {
		cm.log.Info("Stopping cron manager")
		<-c.Stop().Done()
	}
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	schedule := PollSchedule(cm.cfg.PollerConfig.Interval)
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.pollMailbox()
	})
	if err != nil {
		return fmt.Errorf("could not add mailbox poll cron job: %w", err)
	}
	cm.jobIDs[JobPollMailbox] = id
	cm.log.Infof("Registered mailbox poll job with schedule: %s", schedule)
	return nil
}

func PollSchedule(interval time.Duration) string {
	return "@every " + interval.String()
}

func (cm *CronManager) pollMailbox() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.pollMailbox")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	replied, err := cm.poller.Run(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Error in main loop: %v", err)
		return
	}
	span.LogKV("replied", replied)
}
