package xslt

import (
	"crypto/rand"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/xpath"
)

// generateID backs generate-id(): called on an empty node-set it
// returns a random 48-bit hex string; otherwise a hash of a per-node
// tag, since etree nodes carry no line/column info of their own to hash
// directly. For an element the tag comes from the Engine's injected
// node-ID counter (Engine.nodeID); any other node is tagged by its
// string value, so non-element nodes with equal string values share an id.
func (e *Engine) generateID(nodes []etree.Token) string {
	if len(nodes) == 0 {
		var buf [6]byte
		_, _ = rand.Read(buf[:])
		return fmt.Sprintf("%x", buf[:])
	}
	tag := nodeTag(e, nodes[0])
	seed := xmur3(tag)
	sample := mulberry32(seed)
	return fmt.Sprintf("%012x", sample)
}

func nodeTag(e *Engine, n etree.Token) string {
	el, ok := n.(*etree.Element)
	if !ok {
		return xpath.StringValue(n)
	}
	return "n" + strconv.Itoa(e.nodeID(el))
}

// xmur3 is a small, well-known string hash used purely to seed
// mulberry32; it carries no security property and none is needed here.
func xmur3(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h = h * 16777619
	}
	h ^= h >> 16
	h *= 2246822519
	h ^= h >> 13
	h *= 3266489917
	h ^= h >> 16
	return h
}

func mulberry32(seed uint32) uint32 {
	seed += 0x6D2B79F5
	t := seed
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}
