//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"errors"
	"sync"
)

// maxDevices bounds the number of coexisting transceiver instances; device
// indexes name the default pty links.
const maxDevices = 32

var errNoFreeIndex = errors.New("no free device index")

// indexAllocator hands out stable small integers for device naming, bitmap
// style: the lowest free index wins and released indexes are reused.
type indexAllocator struct {
	mu     sync.Mutex
	bitmap uint32
}

func (a *indexAllocator) acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < maxDevices; i++ {
		if a.bitmap&(1<<uint(i)) == 0 {
			a.bitmap |= 1 << uint(i)
			return i, nil
		}
	}
	return -1, errNoFreeIndex
}

func (a *indexAllocator) release(i int) {
	if i < 0 || i >= maxDevices {
		return
	}
	a.mu.Lock()
	a.bitmap &^= 1 << uint(i)
	a.mu.Unlock()
}
