/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package authority

import (
	"context"
	"sync"
	"time"

	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
)

// CachedFetcher keeps the last successfully fetched document for a bounded TTL.
// Failed fetches are never cached. A TTL of zero passes every call through.
type CachedFetcher struct {
	next nzcp.DocumentFetcher
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	doc      *nzcp.DIDDocument
	storedAt time.Time
}

var _ nzcp.DocumentFetcher = (*CachedFetcher)(nil)

func NewCachedFetcher(next nzcp.DocumentFetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next: next,
		ttl:  ttl,
		now:  time.Now,
	}
}

func (f *CachedFetcher) FetchDocument(ctx context.Context) (*nzcp.DIDDocument, error) {
	if f.ttl <= 0 {
		return f.next.FetchDocument(ctx)
	}

	if doc, ok := f.cached(); ok {
		return doc, nil
	}

	doc, err := f.next.FetchDocument(ctx)
	if err != nil || doc == nil {
		return doc, err
	}

	f.mu.Lock()
	f.doc = doc
	f.storedAt = f.now()
	f.mu.Unlock()
	return doc, nil
}

func (f *CachedFetcher) cached() (*nzcp.DIDDocument, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.doc == nil || f.now().Sub(f.storedAt) >= f.ttl {
		return nil, false
	}
	return f.doc, true
}
