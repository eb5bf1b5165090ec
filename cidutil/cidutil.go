// Package cidutil fixes the content-identifier contract shared by every
// Filu-X component: CIDv1 with the "raw" multicodec and a sha2-256 multihash.
// Documents, caches and name bindings all key on this exact form; two
// components that disagree on it cannot exchange content.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DocumentCID returns the CIDv1 (raw + sha2-256) for data.
func DocumentCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// DocumentCIDString returns the string form of DocumentCID. With SHA2_256 and
// default length the underlying hash cannot fail, so the error case collapses
// to an empty string.
func DocumentCIDString(data []byte) string {
	id, err := DocumentCID(data)
	if err != nil {
		return ""
	}
	return id.String()
}
