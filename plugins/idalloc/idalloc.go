// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package idalloc

import (
	"context"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/servicelabel"

	"github.com/contiv/ifmgr/plugins/idalloc/idallocation"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
)

const (
	maxIDAllocationAttempts = 10
)

var (
	// ErrPoolNotFound is returned for operations on a pool that was not initialized.
	ErrPoolNotFound = errors.New("ID pool does not exist")

	// ErrPoolExhausted is returned when there is no free ID left in the pool.
	ErrPoolExhausted = errors.New("no more space left in the ID pool")

	// ErrPoolMismatch is returned by InitPool when the pool exists with
	// a different range.
	ErrPoolMismatch = errors.New("ID pool already exists with different specification")
)

// IDAllocator plugin implements allocation of numeric identifiers from pools
// persisted in the store. Concurrent allocations (also from other agents
// sharing the store) are resolved by optimistic locking.
type IDAllocator struct {
	Deps

	sync.Mutex
	poolCache map[string]*idallocation.AllocationPool // pool name to pool data
	poolMeta  map[string]*poolMetadata                // pool name to pool metadata
}

// Deps lists dependencies of the IDAllocator plugin.
type Deps struct {
	infra.PluginDeps

	ServiceLabel servicelabel.ReaderAPI
	Store        kvstore.Store
}

// poolMetadata contains metadata of a pool used for faster ID allocation.
type poolMetadata struct {
	reservedIDs  map[uint32]bool
	allocatedIDs map[uint32]string // id to label map
}

// Init initializes plugin internals and loads pools from the store.
func (a *IDAllocator) Init() (err error) {
	a.Resync()
	return nil
}

// Resync reloads the internal cache of allocation pools from the store.
func (a *IDAllocator) Resync() {
	a.Lock()
	defer a.Unlock()

	a.poolCache = make(map[string]*idallocation.AllocationPool)
	a.poolMeta = make(map[string]*poolMetadata)
	for key, value := range a.Store.List(idallocation.KeyPrefix()) {
		if _, isPoolKey := idallocation.ParseKey(key); !isPoolKey {
			continue
		}
		pool, isPool := value.(*idallocation.AllocationPool)
		if !isPool {
			a.Log.Warnf("Unexpected value under key %s: %v", key, value)
			continue
		}
		a.cachePool(pool)
	}
	a.Log.Debugf("IDAllocator state after resync: %v", a.poolCache)
}

// Close cleans up the resources.
func (a *IDAllocator) Close() error {
	return nil
}

// InitPool initializes ID allocation pool with given name and ID range.
// If the pool already exists, returns success if the pool range matches with
// existing one (and effectively does nothing), error otherwise.
func (a *IDAllocator) InitPool(name string, poolRange *idallocation.AllocationPool_Range) (err error) {
	a.Lock()
	defer a.Unlock()

	if poolRange == nil || poolRange.MinId == 0 || poolRange.MinId > poolRange.MaxId {
		return errors.Errorf("invalid range of ID pool %s: %v", name, poolRange)
	}

	// if pool with given name already exists, check if their specifications are same
	if pool, exists := a.poolCache[name]; exists {
		if proto.Equal(pool.Range, poolRange) {
			return nil
		}
		a.Log.Errorf("ID pool %s already exists with different specification: %v", name, pool)
		return errors.Wrap(ErrPoolMismatch, name)
	}

	for i := 0; i < maxIDAllocationAttempts; i++ {
		txn := a.Store.NewTxn()
		pool := &idallocation.AllocationPool{
			Name:          name,
			Range:         poolRange,
			IdAllocations: map[string]*idallocation.AllocationPool_Allocation{},
		}
		if existing, isPool := txn.Get(idallocation.Key(name)).(*idallocation.AllocationPool); isPool {
			// the pool already exists in db, check if the specification matches
			if !proto.Equal(pool.Range, existing.Range) {
				return errors.Wrap(ErrPoolMismatch, name)
			}
			a.cachePool(existing)
			return nil
		}
		txn.Put(idallocation.Key(name), pool)
		result := txn.Commit(context.Background())
		switch result.Status {
		case kvstore.Ok:
			a.cachePool(pool)
			a.Log.Debugf("Initialized ID allocation pool %v, metadata: %v", pool, a.poolMeta[pool.Name])
			return nil
		case kvstore.Fatal:
			a.Log.Errorf("Error by writing allocation pool to db: %v", result.Err)
			return result.Err
		}
	}
	return errors.Errorf("initialization of ID pool %s failed in %d attempts", name, maxIDAllocationAttempts)
}

// GetID returns ID allocated for the label (0 if none).
func (a *IDAllocator) GetID(poolName string, idLabel string) (id uint32) {
	a.Lock()
	defer a.Unlock()

	if pool := a.poolCache[poolName]; pool != nil {
		if alloc, exists := pool.IdAllocations[idLabel]; exists {
			return alloc.Id
		}
	}
	return 0
}

// GetOrAllocateID returns allocated ID in given pool for given label. If the ID was
// not already allocated, allocates the lowest available ID.
func (a *IDAllocator) GetOrAllocateID(poolName string, idLabel string) (id uint32, err error) {
	a.Lock()
	defer a.Unlock()

	if a.poolCache[poolName] == nil {
		err = errors.Wrap(ErrPoolNotFound, poolName)
		a.Log.Error(err)
		return 0, err
	}

	succeeded := false
	for i := 0; i < maxIDAllocationAttempts; i++ {
		id, succeeded, err = a.tryToAllocateID(poolName, idLabel)
		if err != nil || succeeded {
			break
		}
		// pool changed in db, re-read from db and retry
		if err = a.dbReadPool(poolName); err != nil {
			break
		}
	}
	if err == nil && !succeeded {
		err = errors.Errorf("ID allocation for pool %s failed in %d attempts", poolName, maxIDAllocationAttempts)
	}
	if err != nil {
		a.Log.Errorf("Error by allocating ID: %v", err)
		return 0, err
	}

	a.Log.Debugf("ID for label '%s' in pool %s: %d", idLabel, poolName, id)
	return id, nil
}

// ReleaseID releases existing allocation for given pool and label.
// NOOP if the pool or allocation does not exist.
func (a *IDAllocator) ReleaseID(poolName string, idLabel string) (err error) {
	a.Lock()
	defer a.Unlock()

	if a.poolCache[poolName] == nil {
		return nil
	}

	succeeded := false
	var released uint32
	for i := 0; i < maxIDAllocationAttempts; i++ {
		released, succeeded, err = a.tryToReleaseID(poolName, idLabel)
		if err != nil || succeeded {
			break
		}
		if err = a.dbReadPool(poolName); err != nil {
			break
		}
	}
	if err == nil && !succeeded {
		err = errors.Errorf("ID release from pool %s failed in %d attempts", poolName, maxIDAllocationAttempts)
	}
	if err != nil {
		a.Log.Errorf("Error by releasing ID: %v", err)
		return err
	}

	if released != 0 {
		a.Log.Debugf("Released ID for label '%s' in pool %s: %d", idLabel, poolName, released)
	}
	return nil
}

// tryToAllocateID attempts to allocate an ID for given pool and label.
func (a *IDAllocator) tryToAllocateID(poolName string, idLabel string) (id uint32, succeeded bool, err error) {
	pool := a.poolCache[poolName]
	poolMeta := a.poolMeta[poolName]

	// step 0, try to get already allocated ID number
	if alloc, exists := pool.IdAllocations[idLabel]; exists {
		return alloc.Id, true, nil
	}

	// step 1, find a free ID number
	found := false
	for id = pool.Range.MinId; id <= pool.Range.MaxId && id != 0; id++ {
		if _, reserved := poolMeta.reservedIDs[id]; reserved {
			continue
		}
		if _, used := poolMeta.allocatedIDs[id]; !used {
			found = true
			break
		}
	}
	if !found {
		return 0, false, errors.Wrap(ErrPoolExhausted, poolName)
	}

	// step 2, try to write into db
	txn := a.Store.NewTxn()
	current, _ := txn.Get(idallocation.Key(poolName)).(*idallocation.AllocationPool)
	if current == nil || !proto.Equal(current, pool) {
		// cache is outdated
		return 0, false, nil
	}
	if current.IdAllocations == nil {
		current.IdAllocations = map[string]*idallocation.AllocationPool_Allocation{}
	}
	current.IdAllocations[idLabel] = &idallocation.AllocationPool_Allocation{
		Id:    id,
		Owner: a.ServiceLabel.GetAgentLabel(),
	}
	txn.Put(idallocation.Key(poolName), current)
	result := txn.Commit(context.Background())
	switch result.Status {
	case kvstore.Conflict:
		return 0, false, nil
	case kvstore.Fatal:
		return 0, false, result.Err
	}
	a.cachePool(current)
	return id, true, nil
}

// tryToReleaseID attempts to release an ID for given pool and label.
func (a *IDAllocator) tryToReleaseID(poolName string, idLabel string) (id uint32, succeeded bool, err error) {
	pool := a.poolCache[poolName]
	alloc, exists := pool.IdAllocations[idLabel]
	if !exists {
		// already released
		return 0, true, nil
	}

	txn := a.Store.NewTxn()
	current, _ := txn.Get(idallocation.Key(poolName)).(*idallocation.AllocationPool)
	if current == nil || !proto.Equal(current, pool) {
		return 0, false, nil
	}
	delete(current.IdAllocations, idLabel)
	if alloc.Owner != a.ServiceLabel.GetAgentLabel() {
		// we do not own this allocation, do not write into db
		a.cachePool(current)
		return alloc.Id, true, nil
	}
	txn.Put(idallocation.Key(poolName), current)
	result := txn.Commit(context.Background())
	switch result.Status {
	case kvstore.Conflict:
		return 0, false, nil
	case kvstore.Fatal:
		return 0, false, result.Err
	}
	a.cachePool(current)
	return alloc.Id, true, nil
}

// dbReadPool re-reads pool data from the store into the cache.
func (a *IDAllocator) dbReadPool(poolName string) error {
	value, _, found := a.Store.Get(idallocation.Key(poolName))
	if !found {
		delete(a.poolCache, poolName)
		delete(a.poolMeta, poolName)
		return errors.Wrap(ErrPoolNotFound, poolName)
	}
	pool, isPool := value.(*idallocation.AllocationPool)
	if !isPool {
		return errors.Errorf("unexpected value stored for ID pool %s", poolName)
	}
	a.cachePool(pool)
	return nil
}

// cachePool stores the pool and its metadata into the cache.
func (a *IDAllocator) cachePool(pool *idallocation.AllocationPool) {
	a.poolCache[pool.Name] = pool
	a.poolMeta[pool.Name] = a.buildPoolMetadata(pool)
}

// buildPoolMetadata builds metadata for the provided allocation pool.
func (a *IDAllocator) buildPoolMetadata(pool *idallocation.AllocationPool) *poolMetadata {
	meta := &poolMetadata{
		allocatedIDs: map[uint32]string{},
		reservedIDs:  map[uint32]bool{},
	}
	for _, id := range pool.GetRange().GetReserved() {
		meta.reservedIDs[id] = true
	}
	for label, alloc := range pool.IdAllocations {
		meta.allocatedIDs[alloc.Id] = label
	}
	return meta
}
