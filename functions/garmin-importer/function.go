package garminimporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/lancerinf/garmin-importer/pkg/bootstrap"
	"github.com/lancerinf/garmin-importer/pkg/credentials"
	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	"github.com/lancerinf/garmin-importer/pkg/framework"
	"github.com/lancerinf/garmin-importer/pkg/importer"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/sentry"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
	"github.com/lancerinf/garmin-importer/pkg/retry"
	"github.com/lancerinf/garmin-importer/pkg/session"
)

const serviceName = "garmin-importer"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("ImportGarminActivities", ImportGarminActivities)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		baseSvc, err := bootstrap.NewService(ctx)
		if err != nil {
			slog.Error("Failed to initialize service", "error", err)
			svcErr = err
			return
		}
		svc = baseSvc
	})
	return svc, svcErr
}

// ImportGarminActivities is triggered by Cloud Scheduler through Pub/Sub.
// The event carries no arguments.
func ImportGarminActivities(ctx context.Context, e event.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %w", err)
	}
	return framework.WrapCloudEvent(serviceName, svc, importHandler())(ctx, e)
}

func importHandler() framework.HandlerFunc {
	return func(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
		imp := newImporter(fwCtx.Service, fwCtx.Logger)

		summary, err := imp.Run(ctx)
		outputs := summary.Map()
		if err != nil {
			outputs["failure_kind"] = failures.Kind(err)
			outputs["error"] = err.Error()
			fwCtx.Logger.Error("Import failed", "error", err, "failure_kind", failures.Kind(err))
			sentry.CaptureImportFailure(err, summary.Username, fwCtx.Logger)
			// The scheduler only sees the generic failure.
			return outputs, failures.ErrImporter
		}
		return outputs, nil
	}
}

// newImporter wires one run from the service dependencies and configuration.
func newImporter(svc *bootstrap.Service, logger *slog.Logger) *importer.Importer {
	cfg := svc.Config
	fetchPolicy := retry.Policy{MaxAttempts: cfg.FetchAttempts, Delay: cfg.RetryDelay}

	provider := credentials.NewProvider(svc.Secrets, cfg.ProjectID, cfg.CredentialsSecret)
	auth := garmin.NewPasswordGrant(cfg.GarminTokenURL, cfg.GarminClientID, cfg.GarminClientSecret, &http.Client{Timeout: 30 * time.Second})
	sessions := session.NewManager(auth, provider, session.Options{
		APIURL:      cfg.GarminAPIURL,
		LoginPolicy: retry.Policy{MaxAttempts: cfg.SessionAttempts, Delay: cfg.RetryDelay},
	}, logger)

	return importer.New(importer.Deps{
		Credentials: provider,
		Sessions:    sessions,
		Watermark:   importer.NewWatermark(svc.DB, cfg.DefaultSince),
		Fetcher: importer.NewFetcher(importer.FetchOptions{
			WindowDays:  cfg.WindowDays,
			Threshold:   cfg.MinActivities,
			Policy:      fetchPolicy,
			CallTimeout: cfg.CallTimeout,
		}, logger),
		Normalizer: activity.NewNormalizer(activity.DefaultSchema()),
		Persister: importer.NewPersister(svc.DB, svc.Store, svc.Pub, svc.Metrics, importer.PersistOptions{
			Bucket:         cfg.GCSArtifactBucket,
			Topic:          cfg.ArchivedActivityTopic,
			DownloadPolicy: fetchPolicy,
			CallTimeout:    cfg.CallTimeout,
		}, logger),
		Lock:    svc.Lock,
		Metrics: svc.Metrics,
	}, importer.Options{
		LockName:       cfg.CredentialsSecret,
		PushgatewayURL: cfg.PushgatewayURL,
		PushJob:        serviceName,
	}, logger)
}
