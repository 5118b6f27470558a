// Package params caches SSM parameters under per-name retention policies
// with a deterministic mock layer for tests.
//
// A [Cache] resolves each Get in order: mock override (when mock mode is
// on), live in-memory entry, durable local entry for Persistent names,
// then the remote source. Fetched values are cached per policy; fetch
// failures never are. Mock overrides shadow everything for their name and
// are never written back into the cache.
//
// # Retention
//
// A Temporary entry lives in memory for the process lifetime, or until an
// explicitly configured TTL expires it. A Persistent entry is additionally
// written to a local directory keyed by name and survives restarts.
//
// # Mock overrides
//
// With mock mode enabled the cache consults a [Provider] before any other
// resolution. [EnvProvider] maps a parameter name to an environment
// variable through a total, invertible encoding; [MapProvider] serves a
// fixed map. [LoadDotenv] seeds the environment from dotenv files.
package params
