// Package store persists the serialized graph artifact.
//
// A deployment has exactly one artifact. Builders overwrite it; retrievers
// read it once at construction. Four backends implement ArtifactStore:
//
//   - FileStore: a file at a well-known path, replaced atomically (the default)
//   - RedisStore: a Redis string key
//   - EtcdStore: an etcd key, for clusters that already run etcd
//   - BadgerStore: an embedded Badger database
//
// Every backend reports a missing artifact as an error wrapping
// kgraph.ErrArtifactNotFound, which callers treat as "no index yet".
//
// RedisStore also implements Notifier: each Save is announced on a pub/sub
// channel so that servers sharing the key can reload.
package store
