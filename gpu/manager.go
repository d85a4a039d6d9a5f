package gpu

import (
	"sort"
	"sync"

	"github.com/artem8086/skyline/gmmu"
)

// textureMapping associates one host byte range of a texture with the
// texture owning it. A multi-range texture contributes one entry per
// range, distinguished by mappingIndex.
type textureMapping struct {
	gmmu.Mapping
	texture      *Texture
	mappingIndex int
}

// TextureManager deduplicates textures by the guest memory they cover.
// Lookups and insertions go through a single lock; entries stay sorted by
// range start address.
type TextureManager struct {
	gpu *GPU

	mu       sync.Mutex
	textures []textureMapping
}

// NewTextureManager creates an empty texture cache for the given GPU.
func NewTextureManager(g *GPU) *TextureManager {
	return &TextureManager{gpu: g}
}

// FindOrCreate returns a view of a cached texture matching the guest
// descriptor, creating and caching a new texture when none matches.
//
// A cached texture is reused only when its dimensions and tiling match, it
// covers exactly the same host ranges, and the requested format shares the
// cached format's texel layout. Any cached texture that merely
// overlaps the descriptor is evicted whole before the replacement is
// created; partial aliasing is not tracked.
func (m *TextureManager) FindOrCreate(guest *GuestTexture) (*TextureView, error) {
	if len(guest.Mappings) == 0 {
		return nil, gmmu.ErrUnmapped
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	first := guest.Mappings[0]
	lo := sort.Search(len(m.textures), func(i int) bool {
		return m.textures[i].End() > first.Address
	})

	for i := lo; i < len(m.textures) && m.textures[i].Address < first.End(); i++ {
		entry := m.textures[i]
		host := entry.texture
		if host.Guest == nil {
			continue
		}
		if host.Guest.Dimensions == guest.Dimensions &&
			host.Guest.TileConfig.Equal(guest.TileConfig) &&
			MappingsEqual(host.Guest.Mappings, guest.Mappings) &&
			guest.Format != nil && host.Guest.Format.Compatible(guest.Format) {
			return m.viewOf(host, guest), nil
		}
	}

	m.evictOverlapsLocked(guest.Mappings)

	texture, err := NewTextureFromGuest(m.gpu, guest)
	if err != nil {
		return nil, err
	}
	for i, mapping := range guest.Mappings {
		m.insertLocked(textureMapping{
			Mapping:      mapping,
			texture:      texture,
			mappingIndex: i,
		})
	}
	return m.viewOf(texture, guest), nil
}

// Invalidate drops every cached texture overlapping the given range.
// Outstanding views keep their textures alive; only the cache forgets
// them.
func (m *TextureManager) Invalidate(rng gmmu.Mapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictOverlapsLocked([]gmmu.Mapping{rng})
}

// Len returns the number of cached range entries.
func (m *TextureManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.textures)
}

func (m *TextureManager) viewOf(t *Texture, guest *GuestTexture) *TextureView {
	layerCount := uint32(guest.LayerCount)
	if layerCount == 0 {
		layerCount = 1
	}
	return &TextureView{
		Texture: t,
		Type:    guest.Type,
		Format:  guest.Format,
		Mapping: IdentityMapping,
		Range: SubresourceRange{
			MipLevelCount:  1,
			BaseArrayLayer: uint32(guest.BaseArrayLayer),
			LayerCount:     layerCount,
		},
	}
}

func (m *TextureManager) insertLocked(entry textureMapping) {
	at := sort.Search(len(m.textures), func(i int) bool {
		return m.textures[i].Address >= entry.Address
	})
	m.textures = append(m.textures, textureMapping{})
	copy(m.textures[at+1:], m.textures[at:])
	m.textures[at] = entry
}

// evictOverlapsLocked removes every entry of every texture that intersects
// any of the given ranges.
func (m *TextureManager) evictOverlapsLocked(mappings []gmmu.Mapping) {
	victims := map[*Texture]struct{}{}
	for _, rng := range mappings {
		for _, entry := range m.textures {
			if entry.Intersects(rng) {
				victims[entry.texture] = struct{}{}
			}
		}
	}
	if len(victims) == 0 {
		return
	}
	kept := m.textures[:0]
	for _, entry := range m.textures {
		if _, evicted := victims[entry.texture]; !evicted {
			kept = append(kept, entry)
		}
	}
	for i := len(kept); i < len(m.textures); i++ {
		m.textures[i] = textureMapping{}
	}
	m.textures = kept
}
