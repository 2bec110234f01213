package storage

import (
	"fmt"

	"github.com/Felmond13/lstoredb/config"
)

// ErrContractViolation signale un appel interne incohérent (mauvais nombre de
// colonnes fourni, par exemple) — une erreur de programmation, jamais censée
// atteindre l'utilisateur final (cahier des charges §7).
var ErrContractViolation = fmt.Errorf("storage: contract violation")

// MetadataColumn identifie une colonne de métadonnées par un indice négatif,
// au sens de l'indexation Python depuis la fin de la liste complète de
// colonnes [user..., RID, SchemaEncoding, Indirection] — la convention que le
// cahier des charges §6 demande de fixer ici plutôt que de reconduire les
// sentinelles incohérentes de la source (RID_COLUMN et SCHEMA_ENCODING_COLUMN
// valaient tous deux -3 dans lstore/config.py).
type MetadataColumn int

const (
	ColIndirection    MetadataColumn = -1
	ColSchemaEncoding MetadataColumn = -2
	ColRID            MetadataColumn = -3
)

// LogicalPage est un alignement de pages physiques par slot — une BasePage ou
// une TailPage. Les pages de base sont immuables une fois un slot écrit, à
// l'exception de la colonne d'indirection ; les pages de tail sont
// accumulatrices, leur indirection n'étant réécrite qu'une fois, juste après
// l'insertion, pour chaîner la version.
type LogicalPage interface {
	InsertRecord(columns []int64) (rid int64, slot int, err error)
	ReadColumn(colIndex int, slot int) int64
	UpdateIndirection(slot int, newRID int64)
	IsFull() bool
	NumUserColumns() int
	NumTotalColumns() int
}

// logicalPage porte l'implémentation commune à BasePage et TailPage : C pages
// physiques alignées par slot, et un lot de RID pré-alloué par l'allocateur.
type logicalPage struct {
	physical    []*PhysicalPage
	numUserCols int
	ridBatch    []int64
	ridCursor   int
}

func newLogicalPage(numUserCols int, ridBatch []int64) logicalPage {
	total := numUserCols + config.NumMetadataColumns
	physical := make([]*PhysicalPage, total)
	for i := range physical {
		physical[i] = NewPhysicalPage()
	}
	return logicalPage{
		physical:    physical,
		numUserCols: numUserCols,
		ridBatch:    ridBatch,
	}
}

func (lp *logicalPage) NumUserColumns() int  { return lp.numUserCols }
func (lp *logicalPage) NumTotalColumns() int { return len(lp.physical) }

// IsFull indique que le lot de RID réservé pour cette page a été entièrement consommé.
func (lp *logicalPage) IsFull() bool {
	return lp.ridCursor >= len(lp.ridBatch)
}

func (lp *logicalPage) physicalIndex(colIndex int) int {
	if colIndex >= 0 {
		return colIndex
	}
	return len(lp.physical) + colIndex
}

// insertRecord écrit les colonnes utilisateur puis les trois colonnes de
// métadonnées : RID (le RID assigné), SchemaEncoding (0 pour un record de
// base, fourni par l'appelant pour un record de tail) et Indirection
// (initialement égal au RID lui-même — le cycle est clos dès l'insertion,
// conformément au §4.5.1 du cahier des charges).
func (lp *logicalPage) insertRecord(columns []int64, schemaEncoding int64) (int64, int, error) {
	if lp.IsFull() {
		return config.InvalidRID, config.InvalidSlot, ErrPageFull
	}
	if len(columns) != lp.numUserCols {
		return config.InvalidRID, config.InvalidSlot, ErrContractViolation
	}
	rid := lp.ridBatch[lp.ridCursor]
	lp.ridCursor++

	var slot int
	var err error
	for i, v := range columns {
		slot, err = lp.physical[i].Write(v)
		if err != nil {
			return config.InvalidRID, config.InvalidSlot, err
		}
	}
	ridIdx := lp.physicalIndex(int(ColRID))
	schemaIdx := lp.physicalIndex(int(ColSchemaEncoding))
	indirIdx := lp.physicalIndex(int(ColIndirection))
	if _, err := lp.physical[ridIdx].Write(rid); err != nil {
		return config.InvalidRID, config.InvalidSlot, err
	}
	if _, err := lp.physical[schemaIdx].Write(schemaEncoding); err != nil {
		return config.InvalidRID, config.InvalidSlot, err
	}
	if _, err := lp.physical[indirIdx].Write(rid); err != nil {
		return config.InvalidRID, config.InvalidSlot, err
	}
	return rid, slot, nil
}

func (lp *logicalPage) ReadColumn(colIndex int, slot int) int64 {
	return lp.physical[lp.physicalIndex(colIndex)].Read(slot)
}

// UpdateIndirection est la seule mutation en place permise sur une page
// logique : elle réécrit le pointeur d'indirection d'un slot déjà écrit.
func (lp *logicalPage) UpdateIndirection(slot int, newRID int64) {
	lp.physical[lp.physicalIndex(int(ColIndirection))].Overwrite(slot, newRID)
}

// BasePage est une page logique immuable une fois écrite (hormis sa colonne
// d'indirection) ; une page range en détient au plus config.MaxBasePagesInPageRange.
type BasePage struct {
	logicalPage
}

// NewBasePage crée une page de base vide à partir d'un lot de RID de base
// frais (512 RID consécutifs issus de rid.Allocator.NextBaseBatch).
func NewBasePage(numUserCols int, ridBatch []int64) *BasePage {
	return &BasePage{logicalPage: newLogicalPage(numUserCols, ridBatch)}
}

// InsertRecord insère un record de base : schema encoding à 0, indirection
// close sur elle-même.
func (b *BasePage) InsertRecord(columns []int64) (int64, int, error) {
	return b.insertRecord(columns, 0)
}

// TailPage est une page logique purement accumulatrice : chaque insertion y
// matérialise une version complète et cumulative du record qu'elle versionne.
type TailPage struct {
	logicalPage
}

// NewTailPage crée une page de tail vide à partir d'un lot de RID de tail frais.
func NewTailPage(numUserCols int, ridBatch []int64) *TailPage {
	return &TailPage{logicalPage: newLogicalPage(numUserCols, ridBatch)}
}

// InsertVersion insère un record de tail cumulatif avec son bitmap de schéma
// déjà calculé par l'appelant (page range).
func (t *TailPage) InsertVersion(columns []int64, schemaEncoding int64) (int64, int, error) {
	return t.insertRecord(columns, schemaEncoding)
}

// InsertRecord satisfait l'interface LogicalPage ; schema encoding à 0.
// Aucun appelant du moteur ne l'utilise — le chemin normal passe par
// InsertVersion.
func (t *TailPage) InsertRecord(columns []int64) (int64, int, error) {
	return t.insertRecord(columns, 0)
}
