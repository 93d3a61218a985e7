package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/stock"
)

const keyPrefix = "stock:snapshot"

// publishScript instala el payload y mueve el puntero en un paso atómico.
// No retrocede: manda el número de operaciones y, a igual número, el stamp de cómputo.
// Ambos van codificados al final de la clave del payload vigente.
// El payload anterior recibe TTL para que los lectores en curso aún lo encuentren.
var publishScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local curCount = string.sub(cur, -41, -22)
  local curStamp = string.sub(cur, -20)
  if ARGV[4] < curCount then
    return 0
  end
  if ARGV[4] == curCount and ARGV[2] < curStamp then
    return 0
  end
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[1], KEYS[2])
if cur and cur ~= KEYS[2] then
  redis.call('PEXPIRE', cur, ARGV[3])
end
return 1
`)

func currentKey(organizationID string) string {
	return strings.Join([]string{keyPrefix, organizationID, "current"}, ":")
}

// stamp de ancho fijo para que la comparación de strings sea cronológica.
func stamp(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func countStamp(n int64) string {
	return fmt.Sprintf("%020d", n)
}

func payloadKey(organizationID string, operationCount int64, computedAt time.Time) string {
	return strings.Join([]string{keyPrefix, organizationID, countStamp(operationCount), stamp(computedAt)}, ":")
}

type decoded struct {
	key  string
	snap *stock.Snapshot
}

// SnapshotStore publica snapshots en Redis para que todas las réplicas de la API lean el mismo.
// Cada snapshot se escribe bajo su propia clave y luego se mueve el puntero "current":
// un lector nunca ve un snapshot a medio escribir.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]decoded // último snapshot decodificado por organización
}

// NewSnapshotStore construye el store. ttl es la vida de los payloads reemplazados.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotStore{client: client, ttl: ttl, local: make(map[string]decoded)}
}

// Publish escribe el snapshot y mueve el puntero de la organización.
func (s *SnapshotStore) Publish(ctx context.Context, snap *stock.Snapshot) error {
	if snap == nil || snap.OrganizationID == "" {
		return domain.NewValidationError("organization_id", "requerido")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	keys := []string{currentKey(snap.OrganizationID), payloadKey(snap.OrganizationID, snap.OperationCount, snap.ComputedAt)}
	args := []interface{}{raw, stamp(snap.ComputedAt), s.ttl.Milliseconds(), countStamp(snap.OperationCount)}
	if err := publishScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return &domain.StoreError{Op: "redis publish", Err: err}
	}
	return nil
}

// Load lee el snapshot vigente; nil, nil si no hay ninguno (o expiró).
func (s *SnapshotStore) Load(ctx context.Context, organizationID string) (*stock.Snapshot, error) {
	key, err := s.client.Get(ctx, currentKey(organizationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "redis load", Err: err}
	}

	s.mu.Lock()
	cached, ok := s.local[organizationID]
	s.mu.Unlock()
	if ok && cached.key == key {
		return cached.snap, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "redis load", Err: err}
	}
	var snap stock.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &domain.StoreError{Op: "redis decode", Err: err, Permanent: true}
	}

	s.mu.Lock()
	s.local[organizationID] = decoded{key: key, snap: &snap}
	s.mu.Unlock()
	return &snap, nil
}
