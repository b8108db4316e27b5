/*
Copyright © 2025 the galvoscan authors.
This file is part of galvoscan.

galvoscan is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

galvoscan is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with galvoscan.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash creates stable keys for cacheable requests.
package hash

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
)

// Hash returns a hex-encoded 128-bit FNV-1a hash of the gob encoding
// of object. It panics if object cannot be gob encoded.
func Hash(object interface{}) string {
	b := bytes.NewBuffer(nil)
	e := gob.NewEncoder(b)
	if err := e.Encode(object); err != nil {
		panic(fmt.Errorf("hash: encoding %T: %v", object, err))
	}
	h := fnv.New128a()
	h.Write(b.Bytes())
	return fmt.Sprintf("%x", h.Sum(nil))
}
