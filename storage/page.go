// Package storage implémente la hiérarchie de pages du moteur : page
// physique (buffer 4 KB d'entiers 64 bits), page logique (BasePage /
// TailPage, un alignement de pages physiques par slot) et le bufferpool qui
// fait transiter les pages physiques vers/depuis le disque. Repris de la
// disposition binaire de storage/page.go du professeur — encodage
// little-endian dans un buffer fixe — généralisée de documents de taille
// variable à des colonnes entières de largeur fixe.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/Felmond13/lstoredb/config"
)

// PageSize est la taille d'une page physique en octets (4 KB).
const PageSize = config.PhysicalPageSize

// MaxSlots est le nombre de valeurs int64 que contient une page physique pleine.
const MaxSlots = config.MaxRecordsPerPage

// ErrPageFull signale qu'une page physique a atteint sa capacité.
var ErrPageFull = fmt.Errorf("storage: physical page is full")

// PhysicalPage est un buffer fixe de PageSize octets stockant jusqu'à
// MaxSlots valeurs int64 d'une seule colonne, plus son curseur d'écriture.
// Aucune synchronisation interne : l'appelant (bufferpool ou page range) en
// sérialise l'accès.
type PhysicalPage struct {
	Data   [PageSize]byte
	cursor int // nombre de slots déjà écrits
}

// NewPhysicalPage crée une page physique vide.
func NewPhysicalPage() *PhysicalPage {
	return &PhysicalPage{}
}

// HasCapacity indique s'il reste au moins un slot libre.
func (p *PhysicalPage) HasCapacity() bool {
	return p.cursor < MaxSlots
}

// Write ajoute value au curseur courant et retourne le slot occupé. Échoue
// (ErrPageFull) si la page est pleine.
func (p *PhysicalPage) Write(value int64) (int, error) {
	if !p.HasCapacity() {
		return config.InvalidSlot, ErrPageFull
	}
	slot := p.cursor
	binary.LittleEndian.PutUint64(p.Data[slot*8:], uint64(value))
	p.cursor++
	return slot, nil
}

// Overwrite remplace en place la valeur d'un slot déjà écrit. C'est la seule
// mutation en place autorisée sur une page physique — utilisée exclusivement
// pour réviser la colonne d'indirection d'un record : celle d'un record de
// base à chaque mise à jour, et celle d'un record de tail juste inséré pour
// le chaîner à la version précédente.
func (p *PhysicalPage) Overwrite(slot int, value int64) {
	binary.LittleEndian.PutUint64(p.Data[slot*8:], uint64(value))
}

// Read retourne la valeur stockée au slot donné.
func (p *PhysicalPage) Read(slot int) int64 {
	return int64(binary.LittleEndian.Uint64(p.Data[slot*8:]))
}

// Cursor retourne le nombre de slots occupés.
func (p *PhysicalPage) Cursor() int {
	return p.cursor
}

// setCursor restaure le curseur d'écriture, utilisé à la relecture depuis disque.
func (p *PhysicalPage) setCursor(n int) {
	p.cursor = n
}

// Bytes retourne le buffer brut de la page, pour l'écriture disque.
func (p *PhysicalPage) Bytes() []byte {
	return p.Data[:]
}

// FromBytes recharge une page physique depuis un buffer brut déjà décompressé,
// en recalculant son curseur à partir du nombre de slots fourni.
func FromBytes(buf []byte, cursor int) *PhysicalPage {
	p := &PhysicalPage{}
	copy(p.Data[:], buf)
	p.setCursor(cursor)
	return p
}
