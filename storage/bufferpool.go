package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/snappy"

	"github.com/Felmond13/lstoredb/config"
)

// Bufferpool gère la résidence en mémoire des pages physiques : cache LRU
// (liste doublement chaînée + map, O(1) get/pin/evict) avec compteurs de
// référence pin/unpin, éviction au-delà de MaxBufferpoolSize, et persistance
// vers un Disk au moment de l'éviction ou d'un Flush. Structurellement,
// c'est le lruCache du professeur (storage/lru.go) généralisé d'une clé
// uint32 à une PageKey composite, avec pin/unpin ajoutés et la compression
// snappy du corps de page reprise de storage/pager.go.
type Bufferpool struct {
	mu       sync.Mutex
	capacity int
	items    map[PageKey]*poolNode
	head     *poolNode // MRU
	tail     *poolNode // LRU
	disk     Disk

	hits   uint64
	misses uint64
}

type poolNode struct {
	key      PageKey
	page     *PhysicalPage
	pinCount int
	dirty    bool
	prev     *poolNode
	next     *poolNode
}

// NewBufferpool crée un bufferpool de la capacité donnée (en pages) adossé à
// disk. Une capacité non positive retombe sur config.MaxBufferpoolSize.
func NewBufferpool(capacity int, disk Disk) *Bufferpool {
	if capacity <= 0 {
		capacity = config.MaxBufferpoolSize
	}
	return &Bufferpool{
		capacity: capacity,
		items:    make(map[PageKey]*poolNode, capacity),
		disk:     disk,
	}
}

// GetPage retourne la page associée à key, en la chargeant depuis disk si
// elle n'est pas déjà en cache. Retourne (nil, nil) si la page n'existe nulle
// part — c'est au niveau logique (page range) de décider d'en créer une.
func (bp *Bufferpool) GetPage(key PageKey) (*PhysicalPage, error) {
	bp.mu.Lock()
	if node, ok := bp.items[key]; ok {
		bp.hits++
		bp.moveToFront(node)
		page := node.page
		bp.mu.Unlock()
		return page, nil
	}
	bp.misses++
	bp.mu.Unlock()

	if bp.disk == nil || !bp.disk.PageExists(key.Path()) {
		return nil, nil
	}
	raw, err := bp.disk.ReadPage(key.Path())
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	page, err := decodePage(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.putLocked(key, page, false)
	return page, nil
}

// Put insère ou remplace la page en cache. dirty indique qu'elle diffère de
// la dernière image persistée et devra être réécrite à l'éviction ou au flush.
func (bp *Bufferpool) Put(key PageKey, page *PhysicalPage, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.putLocked(key, page, dirty)
}

func (bp *Bufferpool) putLocked(key PageKey, page *PhysicalPage, dirty bool) {
	if node, ok := bp.items[key]; ok {
		node.page = page
		node.dirty = node.dirty || dirty
		bp.moveToFront(node)
		return
	}
	node := &poolNode{key: key, page: page, dirty: dirty}
	bp.items[key] = node
	bp.pushFront(node)
	bp.evictIfNeeded()
}

// Pin incrémente le compteur de références d'une page, l'excluant de l'éviction.
func (bp *Bufferpool) Pin(key PageKey) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if node, ok := bp.items[key]; ok {
		node.pinCount++
	}
}

// Unpin décrémente le compteur de références d'une page.
func (bp *Bufferpool) Unpin(key PageKey) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if node, ok := bp.items[key]; ok && node.pinCount > 0 {
		node.pinCount--
	}
}

// MarkDirty signale qu'une page en cache doit être réécrite sur disk avant éviction.
func (bp *Bufferpool) MarkDirty(key PageKey) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if node, ok := bp.items[key]; ok {
		node.dirty = true
	}
}

// evictIfNeeded évince depuis la queue LRU jusqu'à respecter la capacité,
// en sautant les pages actuellement épinglées (pinCount > 0) — à l'image de
// evict_if_needed du contrat bufferpool (cahier des charges §6).
func (bp *Bufferpool) evictIfNeeded() {
	for len(bp.items) > bp.capacity {
		victim := bp.tail
		for victim != nil && victim.pinCount > 0 {
			victim = victim.prev
		}
		if victim == nil {
			return // tout est épinglé ; rien à évincer
		}
		bp.persist(victim)
		bp.removeNode(victim)
		delete(bp.items, victim.key)
	}
}

// Flush persiste toutes les pages marquées dirty. Table.Close ne l'appelle
// pas : les pages des page ranges restent en mémoire et ne transitent pas par
// le bufferpool, qui n'est exercé que par ses propres tests.
func (bp *Bufferpool) Flush() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, node := range bp.items {
		if node.dirty {
			if err := bp.persist(node); err != nil {
				return err
			}
			node.dirty = false
		}
	}
	return nil
}

func (bp *Bufferpool) persist(node *poolNode) error {
	if bp.disk == nil || !node.dirty {
		return nil
	}
	encoded := encodePage(node.page)
	if err := bp.disk.WritePage(node.key.Path(), encoded); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	node.dirty = false
	return nil
}

// Stats retourne les statistiques de hit/miss du cache.
func (bp *Bufferpool) Stats() (hits, misses uint64, size, capacity int) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.hits, bp.misses, len(bp.items), bp.capacity
}

// ---------- liste doublement chaînée ----------

func (bp *Bufferpool) pushFront(node *poolNode) {
	node.prev = nil
	node.next = bp.head
	if bp.head != nil {
		bp.head.prev = node
	}
	bp.head = node
	if bp.tail == nil {
		bp.tail = node
	}
}

func (bp *Bufferpool) removeNode(node *poolNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		bp.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		bp.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

func (bp *Bufferpool) moveToFront(node *poolNode) {
	if node == bp.head {
		return
	}
	bp.removeNode(node)
	bp.pushFront(node)
}

// ---------- encodage disque : curseur + snappy ----------

// encodePage sérialise le curseur d'écriture puis le buffer brut de la page,
// compressés en snappy avant d'être remis au contrat Disk — reprend l'appel
// à snappy.Encode autour du corps de page de storage/pager.go du professeur.
func encodePage(p *PhysicalPage) []byte {
	raw := make([]byte, 2+PageSize)
	binary.LittleEndian.PutUint16(raw[0:2], uint16(p.Cursor()))
	copy(raw[2:], p.Data[:])
	return snappy.Encode(nil, raw)
}

func decodePage(compressed []byte) (*PhysicalPage, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	if len(raw) != 2+PageSize {
		return nil, fmt.Errorf("corrupt page: expected %d bytes, got %d", 2+PageSize, len(raw))
	}
	cursor := int(binary.LittleEndian.Uint16(raw[0:2]))
	return FromBytes(raw[2:], cursor), nil
}
