package cache

import "context"

// NopClient is the cache-disabled client. Every operation returns its sentinel.
type NopClient struct{}

func (NopClient) Get(context.Context, string, any) bool               { return false }
func (NopClient) Set(context.Context, string, any, ...SetOption) bool { return false }
func (NopClient) Delete(context.Context, string) bool                 { return false }
func (NopClient) DeleteByPattern(context.Context, string) int         { return 0 }
func (NopClient) TTL(context.Context, string) int64                   { return NoTTL }
func (NopClient) IsReady() bool                                       { return false }
func (NopClient) Close() error                                        { return nil }
