package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/numtide/expiration-watcher/internal/config"
	"github.com/numtide/expiration-watcher/pkg/discovery"
	"github.com/numtide/expiration-watcher/pkg/monitoring"
	"github.com/numtide/expiration-watcher/pkg/refresh"
	"github.com/numtide/expiration-watcher/pkg/server"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

const eventSource = "expiration-watcher"

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

type serveOptions struct {
	listenAddr      string
	probeAddr       string
	refreshInterval time.Duration
	apiTimeout      time.Duration
	emitEvents      bool
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := serveOptions{}
	zapOpts := zap.Options{Development: cfg.LogDevelopment}

	rootCmd := &cobra.Command{
		Use:   "expiration-watcher",
		Short: "Export the expiry of TLS certificates stored in Kubernetes secrets",
		Long: "expiration-watcher lists the kubernetes.io/tls secrets annotated with " +
			discovery.WatchAnnotation + "=true or carrying a " + discovery.CertManagerCommonNameAnnotation +
			" annotation, and exports the days left before each certificate expires as the " +
			monitoring.ExpirationMetricName + " Prometheus gauge.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
			return serve(c.Context(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.listenAddr, "listen-address", cfg.ListenAddress,
		"The address serving /live, /json and /metrics.")
	flags.StringVar(&opts.probeAddr, "health-probe-bind-address", cfg.HealthProbeBindAddress,
		"The address the probe endpoint binds to.")
	flags.DurationVar(&opts.refreshInterval, "refresh-interval", cfg.RefreshInterval,
		"How often the certificate snapshot is rebuilt.")
	flags.DurationVar(&opts.apiTimeout, "api-timeout", cfg.APITimeout,
		"Timeout of requests to the Kubernetes API server.")
	flags.BoolVar(&opts.emitEvents, "emit-events", cfg.EmitEvents,
		"Record a Warning event on secrets whose certificate cannot be decoded.")

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)
	// --kubeconfig, registered by controller-runtime.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(newInspectCommand())
	return rootCmd
}

func serve(ctx context.Context, opts serveOptions) error {
	setupLog := ctrl.Log.WithName("setup")

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		setupLog.Error(err, "unable to load kubernetes client configuration")
		return fmt.Errorf("failed to load kubernetes client configuration: %w", err)
	}
	restConfig.Timeout = opts.apiTimeout

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		// /metrics is served by our own server next to /json and /live.
		Metrics:                metricsserver.Options{BindAddress: "0"},
		HealthProbeBindAddress: opts.probeAddr,
	})
	if err != nil {
		setupLog.Error(err, "unable to create manager")
		return fmt.Errorf("failed to create manager: %w", err)
	}

	store := snapshot.NewStore()
	if err := monitoring.RegisterExpirationCollector(store); err != nil {
		setupLog.Error(err, "unable to register expiration collector")
		return fmt.Errorf("failed to register expiration collector: %w", err)
	}

	var recorder record.EventRecorder
	if opts.emitEvents {
		recorder = mgr.GetEventRecorderFor(eventSource)
	}

	scheduler := refresh.NewScheduler(
		discovery.NewBuilder(mgr.GetAPIReader(), recorder),
		store,
		refresh.Options{Interval: opts.refreshInterval},
	)
	if err := mgr.Add(scheduler); err != nil {
		setupLog.Error(err, "unable to add refresh scheduler to manager")
		return fmt.Errorf("failed to add refresh scheduler: %w", err)
	}

	srv := server.New(server.Options{
		Addr:      opts.listenAddr,
		Snapshots: store,
		Refresher: scheduler,
	})
	if err := mgr.Add(srv); err != nil {
		setupLog.Error(err, "unable to add HTTP server to manager")
		return fmt.Errorf("failed to add http server: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return fmt.Errorf("failed to add health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("snapshot", snapshotReadyCheck(store)); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return fmt.Errorf("failed to add ready check: %w", err)
	}

	setupLog.Info("starting manager",
		"listenAddress", opts.listenAddr,
		"refreshInterval", opts.refreshInterval,
		"emitEvents", opts.emitEvents,
	)
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}
	return nil
}

// snapshotReadyCheck fails until the first snapshot has been published.
func snapshotReadyCheck(store server.SnapshotSource) healthz.Checker {
	return func(*http.Request) error {
		_, err := store.Load()
		return err
	}
}
