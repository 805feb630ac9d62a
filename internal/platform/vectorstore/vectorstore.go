// Package vectorstore abstracts the similarity index that serves
// related-incident queries. The production implementation talks to Qdrant
// over HTTP; a process-local store backs development and tests.
package vectorstore

import (
	"context"
	"fmt"
)

// Vector is one embedding plus the queryable payload stored beside it.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// VectorMatch is a similarity hit. Higher score is better.
type VectorMatch struct {
	ID    string
	Score float64
}

type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with similarity scores, best first. The filter
	// uses the mongo-style operators $and, $or, $not, $eq, $ne and $in; bare
	// "field": value pairs are equality matches.
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error)
	QueryIDs(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]string, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

type OpErrorCode string

const (
	OpErrorValidation        OpErrorCode = "validation_failed"
	OpErrorUnsupportedFilter OpErrorCode = "unsupported_filter"
	OpErrorEncodeFailed      OpErrorCode = "encode_failed"
	OpErrorDecodeFailed      OpErrorCode = "decode_failed"
	OpErrorTransportFailed   OpErrorCode = "transport_failed"
	OpErrorTimeout           OpErrorCode = "timeout"
	OpErrorQueryFailed       OpErrorCode = "query_failed"
)

// OpError carries enough context to tell a malformed request apart from a
// backend outage without string matching.
type OpError struct {
	Code       OpErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OpError) Error() string {
	if e == nil {
		return "vector store operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d): %s",
			e.Operation, e.Code, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d): %v",
			e.Operation, e.Code, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d)",
		e.Operation, e.Code, e.StatusCode)
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OpErrorCode, msg string, cause error) error {
	return &OpError{Code: code, Operation: op, Message: msg, Cause: cause}
}
