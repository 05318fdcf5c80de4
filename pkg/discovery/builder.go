package discovery

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/expiration-watcher/pkg/certinfo"
	"github.com/numtide/expiration-watcher/pkg/monitoring"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

// SecretTypeField is the field selector key used to restrict the List to TLS secrets.
const SecretTypeField = "type"

// EventReasonDecodeFailed is the reason of the Warning event recorded on a
// secret whose certificate could not be decoded.
const EventReasonDecodeFailed = "CertificateDecodeFailed"

// SourceUnavailableError reports that the secret store could not be listed.
// No snapshot is produced when it is returned.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("secret store unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Builder runs discovery passes against the secret store.
type Builder struct {
	// Reader lists secrets. An uncached reader (manager.GetAPIReader) keeps
	// each pass to one List call against the API server.
	Reader client.Reader

	// Recorder, when set, receives a Warning event for every secret whose
	// certificate cannot be decoded.
	Recorder record.EventRecorder

	// Backoff bounds the retries of transient List failures within one pass.
	// Defaults to retry.DefaultBackoff.
	Backoff *wait.Backoff

	// Now stamps finished snapshots. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder creates a Builder reading from reader. recorder may be nil.
func NewBuilder(reader client.Reader, recorder record.EventRecorder) *Builder {
	return &Builder{
		Reader:   reader,
		Recorder: recorder,
	}
}

// Build performs one discovery pass and returns a complete snapshot of the
// selected, decodable certificates, sorted by namespace and name.
func (b *Builder) Build(ctx context.Context) (*snapshot.Snapshot, error) {
	logger := log.FromContext(ctx).WithName("discovery")

	secrets, err := b.listTLSSecrets(ctx)
	if err != nil {
		return nil, &SourceUnavailableError{Err: err}
	}

	records := make([]certinfo.Record, 0, len(secrets.Items))
	for i := range secrets.Items {
		secret := &secrets.Items[i]
		if !ShouldWatch(secret) {
			continue
		}

		logger.V(1).Info("checking TLS secret", "namespace", secret.Namespace, "name", secret.Name)

		data := secret.Data[corev1.TLSCertKey]
		if len(data) == 0 {
			logger.V(1).Info("selected secret has no certificate yet, skipping",
				"namespace", secret.Namespace, "name", secret.Name)
			continue
		}

		cert, err := certinfo.DecodePEM(data)
		if err != nil {
			logger.Info("skipping secret with undecodable certificate",
				"namespace", secret.Namespace, "name", secret.Name, "error", err.Error())
			monitoring.RecordDecodeFailure()
			b.recordDecodeFailure(secret, err)
			continue
		}

		records = append(records, certinfo.NewRecord(secret.Namespace, secret.Name, cert))
	}

	slices.SortFunc(records, func(x, y certinfo.Record) int {
		return cmp.Or(
			strings.Compare(x.Namespace, y.Namespace),
			strings.Compare(x.Name, y.Name),
		)
	})

	return snapshot.New(records, b.now()), nil
}

func (b *Builder) listTLSSecrets(ctx context.Context) (*corev1.SecretList, error) {
	ctx, span := monitoring.StartChildSpan(ctx, "Secrets.List")
	defer span.End()

	backoff := retry.DefaultBackoff
	if b.Backoff != nil {
		backoff = *b.Backoff
	}

	list := &corev1.SecretList{}
	err := retry.OnError(backoff, func(err error) bool {
		return ctx.Err() == nil && isTransient(err)
	}, func() error {
		return b.Reader.List(ctx, list,
			client.MatchingFields{SecretTypeField: string(corev1.SecretTypeTLS)})
	})
	if err != nil {
		monitoring.RecordSpanError(span, err)
		return nil, fmt.Errorf("failed to list TLS secrets: %w", err)
	}
	return list, nil
}

// isTransient reports List failures worth retrying within the same pass.
func isTransient(err error) bool {
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err)
}

func (b *Builder) recordDecodeFailure(secret *corev1.Secret, err error) {
	if b.Recorder == nil {
		return
	}
	b.Recorder.Eventf(secret, corev1.EventTypeWarning, EventReasonDecodeFailed,
		"Failed to decode %s: %v", corev1.TLSCertKey, err)
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
