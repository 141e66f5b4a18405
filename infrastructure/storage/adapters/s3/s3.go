// Package s3 implements the object storage contract on AWS S3 (or an
// S3-compatible endpoint). It exists alongside the fs and httpapi adapters
// as proof the closed backend set extends without touching callers.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"blobstore/config"
	"blobstore/domain/observability"
	"blobstore/domain/storage"
)

const (
	defaultListLimit = 1000
	defaultExpiry    = 15 * time.Minute
)

// Store is the S3 backend, bound to one bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  observability.Logger
	metrics observability.Metrics
}

// New builds an S3 store from configuration. Static credentials and a custom
// endpoint support S3-compatible services in development.
func New(cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*Store, error) {
	if cfg.S3.Bucket == "" {
		return nil, storage.WrapError(storage.CodeInternal, "", fmt.Errorf("s3: bucket is required"))
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}

	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(storage.CodeInternal, "", fmt.Errorf("build AWS config: %w", err))
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3.Bucket,
		logger:  logger.WithFields(map[string]interface{}{"component": "s3_storage"}),
		metrics: metrics.WithTags(map[string]string{"storage": "s3"}),
	}, nil
}

// Put uploads content under key. Preconditions are checked with a Head
// before the upload; S3 offers no transactional conditional put across all
// compatible services, so last-checker-wins races are possible here in a way
// they are not on the local backend.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts *storage.PutOptions) (*storage.ObjectMetadata, error) {
	if opts == nil {
		opts = &storage.PutOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("s3.put.attempts", nil)

	content, err := storage.ReadAll(r)
	if err != nil {
		return nil, storage.WrapError(storage.CodeInvalidContent, key, err)
	}
	checksum := storage.ComputeChecksum(content)
	if opts.Checksum != "" && opts.Checksum != checksum {
		return nil, storage.NewError(storage.CodeChecksumMismatch, key)
	}

	if opts.IfNoneMatch || opts.IfMatch != nil {
		current, err := s.GetMetadata(ctx, key)
		if err != nil {
			return nil, err
		}
		if opts.IfNoneMatch && current != nil {
			return nil, storage.NewError(storage.CodeAlreadyExists, key)
		}
		if opts.IfMatch != nil && (current == nil || current.ETag != *opts.IfMatch) {
			return nil, storage.NewError(storage.CodePreconditionFailed, key)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = storage.DetectContentType(key, content)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.ContentDisposition != "" {
		input.ContentDisposition = aws.String(opts.ContentDisposition)
	}
	if opts.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(opts.StorageClass)
	}
	meta := map[string]string{"checksum": checksum}
	for k, v := range opts.UserMetadata {
		meta[k] = v
	}
	input.Metadata = meta

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.metrics.IncrementCounter("s3.put.errors", nil)
		return nil, mapError(err, key)
	}

	s.logger.Info("object stored", "key", key, "bytes", len(content))
	s.metrics.IncrementCounter("s3.put.success", nil)
	s.metrics.RecordHistogram("s3.put.bytes", float64(len(content)), nil)

	return &storage.ObjectMetadata{
		ContentType:        contentType,
		Size:               int64(len(content)),
		ETag:               strings.Trim(aws.ToString(out.ETag), `"`),
		Checksum:           checksum,
		LastModified:       time.Now().UTC(),
		UserMetadata:       opts.UserMetadata,
		CacheControl:       opts.CacheControl,
		ContentEncoding:    opts.ContentEncoding,
		ContentDisposition: opts.ContentDisposition,
		StorageClass:       opts.StorageClass,
		VersionID:          aws.ToString(out.VersionId),
	}, nil
}

// Get fetches the object, streaming S3's response body through. Conditional
// options ride on the GetObject call; S3's 304/412 answers map to (nil, nil).
func (s *Store) Get(ctx context.Context, key string, opts *storage.GetOptions) (*storage.Object, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("s3.get.attempts", nil)

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if opts.Range != nil {
		input.Range = aws.String(opts.Range.Header())
	}
	if opts.IfModifiedSince != nil {
		input.IfModifiedSince = aws.Time(*opts.IfModifiedSince)
	}
	if opts.IfNoneMatch != nil {
		input.IfNoneMatch = aws.String(`"` + *opts.IfNoneMatch + `"`)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) || isNotModified(err) {
			s.metrics.IncrementCounter("s3.get.miss", nil)
			return nil, nil
		}
		s.metrics.IncrementCounter("s3.get.errors", nil)
		return nil, mapError(err, key)
	}

	meta := storage.ObjectMetadata{
		ContentType:        aws.ToString(out.ContentType),
		Size:               aws.ToInt64(out.ContentLength),
		ETag:               strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified:       aws.ToTime(out.LastModified),
		CacheControl:       aws.ToString(out.CacheControl),
		ContentEncoding:    aws.ToString(out.ContentEncoding),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		VersionID:          aws.ToString(out.VersionId),
	}
	meta.Checksum = out.Metadata["checksum"]
	if um := userMetadata(out.Metadata); len(um) > 0 {
		meta.UserMetadata = um
	}

	s.metrics.IncrementCounter("s3.get.success", nil)
	return &storage.Object{Key: key, Metadata: meta, Body: out.Body}, nil
}

// GetMetadata heads the object; no body is transferred. (nil, nil) if absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, mapError(err, key)
	}

	meta := &storage.ObjectMetadata{
		ContentType:        aws.ToString(out.ContentType),
		Size:               aws.ToInt64(out.ContentLength),
		ETag:               strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified:       aws.ToTime(out.LastModified),
		CacheControl:       aws.ToString(out.CacheControl),
		ContentEncoding:    aws.ToString(out.ContentEncoding),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		StorageClass:       string(out.StorageClass),
		VersionID:          aws.ToString(out.VersionId),
	}
	meta.Checksum = out.Metadata["checksum"]
	if um := userMetadata(out.Metadata); len(um) > 0 {
		meta.UserMetadata = um
	}
	return meta, nil
}

// Exists reports presence via HeadObject.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// Delete removes the object. S3's DeleteObject is silent about whether the
// key existed, so a Head supplies the contract's boolean.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return false, err
	}
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.metrics.IncrementCounter("s3.delete.errors", nil)
		return false, mapError(err, key)
	}
	s.logger.Info("object deleted", "key", key)
	s.metrics.IncrementCounter("s3.delete.success", nil)
	return true, nil
}

// List maps ListObjectsV2 onto the shared contract. The continuation token
// is already an opaque cursor, so it passes through unchanged.
func (s *Store) List(ctx context.Context, opts *storage.ListOptions) (*storage.ListResult, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.metrics.IncrementCounter("s3.list.attempts", nil)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.Cursor != "" {
		input.ContinuationToken = aws.String(opts.Cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		s.metrics.IncrementCounter("s3.list.errors", nil)
		return nil, mapError(err, "")
	}

	result := &storage.ListResult{
		Truncated: aws.ToBool(out.IsTruncated),
		Cursor:    aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		result.Objects = append(result.Objects, storage.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
		})
	}
	for _, p := range out.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(p.Prefix))
	}

	s.metrics.IncrementCounter("s3.list.success", nil)
	return result, nil
}

// OpenRead streams the object's body; a missing key is NOT_FOUND.
func (s *Store) OpenRead(ctx context.Context, key string, opts *storage.GetOptions) (io.ReadCloser, error) {
	obj, err := s.Get(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, storage.NewError(storage.CodeNotFound, key)
	}
	return obj.Body, nil
}

// OpenWrite returns a streaming writer that commits through Put on Close.
func (s *Store) OpenWrite(ctx context.Context, key string, opts *storage.PutOptions) (storage.ObjectWriter, error) {
	if _, err := storage.Normalize(key); err != nil {
		return nil, err
	}
	return storage.NewPipeWriter(ctx, key, opts, s.Put), nil
}

// SignedURL presigns a GET or PUT on the object.
func (s *Store) SignedURL(ctx context.Context, key string, opts *storage.SignedURLOptions) (string, error) {
	if opts == nil {
		opts = &storage.SignedURLOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return "", err
	}
	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultExpiry
	}

	switch opts.Method {
	case "", http.MethodGet:
		input := &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}
		if opts.Download != "" {
			input.ResponseContentDisposition = aws.String(`attachment; filename="` + opts.Download + `"`)
		}
		req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
		if err != nil {
			return "", mapError(err, key)
		}
		return req.URL, nil
	case http.MethodPut:
		req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expiry))
		if err != nil {
			return "", mapError(err, key)
		}
		return req.URL, nil
	default:
		return "", storage.WrapError(storage.CodeInvalidContent, key, fmt.Errorf("unsupported method %q", opts.Method))
	}
}

func buildAWSConfig(cfg *config.StorageConfig) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), optFns...)
}

// userMetadata strips backend-internal entries from S3 object metadata.
func userMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := map[string]string{}
	for k, v := range m {
		if k == "checksum" {
			continue
		}
		out[k] = v
	}
	return out
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func isNotModified(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "NotModified"
}

// mapError translates SDK failures into the shared taxonomy, marking
// network-level failures retryable.
func mapError(err error, key string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &storage.Error{Code: storage.CodeTimeout, Key: key, Retryable: true, Err: err}
	}
	if isNotFound(err) {
		return storage.NewError(storage.CodeNotFound, key)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return &storage.Error{Code: storage.CodePermissionDenied, Key: key, Err: err}
		case "QuotaExceeded", "EntityTooLarge":
			return &storage.Error{Code: storage.CodeQuotaExceeded, Key: key, Err: err}
		case "PreconditionFailed":
			return &storage.Error{Code: storage.CodePreconditionFailed, Key: key, Err: err}
		case "RequestTimeout", "SlowDown":
			return &storage.Error{Code: storage.CodeTimeout, Key: key, Retryable: true, Err: err}
		}
		return &storage.Error{Code: storage.CodeInternal, Key: key, Err: err}
	}
	// no typed API error means the request never got a response
	return &storage.Error{Code: storage.CodeNetworkError, Key: key, Retryable: true, Err: err}
}
