package differ

import (
	"sort"
	"strings"

	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/model"
)

const (
	bucketDropForeignKey = iota
	bucketDropTable
	bucketDropConstraint
	bucketDropColumn
	bucketEnsureSchema
	bucketRenameTable
	bucketRename
	bucketCreateSequence
	bucketColumn
	bucketConstraint
	bucketRestartSequence
	bucketCreateTable
	bucketForeignKey
	bucketOther
	bucketCount
)

func bucketOf(op operations.Operation) int {
	switch op.(type) {
	case *operations.DropForeignKey:
		return bucketDropForeignKey
	case *operations.DropTable:
		return bucketDropTable
	case *operations.DropIndex, *operations.DropPrimaryKey, *operations.DropUniqueConstraint, *operations.DropSequence:
		return bucketDropConstraint
	case *operations.DropColumn:
		return bucketDropColumn
	case *operations.EnsureSchema:
		return bucketEnsureSchema
	case *operations.RenameTable, *operations.MoveTable:
		return bucketRenameTable
	case *operations.RenameColumn, *operations.RenameIndex, *operations.RenameSequence, *operations.MoveSequence:
		return bucketRename
	case *operations.CreateSequence:
		return bucketCreateSequence
	case *operations.AddColumn, *operations.AlterColumn:
		return bucketColumn
	case *operations.AddPrimaryKey, *operations.AddUniqueConstraint, *operations.AlterSequence:
		return bucketConstraint
	case *operations.RestartSequence:
		return bucketRestartSequence
	case *operations.CreateTable:
		return bucketCreateTable
	case *operations.AddForeignKey, *operations.CreateIndex:
		return bucketForeignKey
	}
	return bucketOther
}

// sortOperations orders operations so that every statement only depends on
// objects created, renamed or freed by statements before it.
func sortOperations(ops []operations.Operation, ctx *diffContext) []operations.Operation {
	var buckets [bucketCount][]operations.Operation
	for _, op := range ops {
		b := bucketOf(op)
		buckets[b] = append(buckets[b], op)
	}

	buckets[bucketEnsureSchema] = dedupeSchemas(buckets[bucketEnsureSchema])

	drops, violated := sortDropTables(buckets[bucketDropTable], ctx.source)
	buckets[bucketDropTable] = drops
	buckets[bucketDropForeignKey] = append(buckets[bucketDropForeignKey], violated...)

	creates, detached := sortCreateTables(buckets[bucketCreateTable])
	buckets[bucketCreateTable] = creates
	buckets[bucketForeignKey] = append(detached, buckets[bucketForeignKey]...)

	sorted := make([]operations.Operation, 0, len(ops)+len(violated))
	for _, b := range buckets {
		sorted = append(sorted, b...)
	}
	return sorted
}

func dedupeSchemas(ops []operations.Operation) []operations.Operation {
	seen := map[string]bool{}
	var result []operations.Operation
	for _, op := range ops {
		name := op.(*operations.EnsureSchema).Name
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, op)
	}
	return result
}

// sortCreateTables orders created tables principal first. Foreign keys that
// still point forward after sorting, because of a cycle, are taken out of
// their CreateTable and returned as standalone operations.
func sortCreateTables(ops []operations.Operation) ([]operations.Operation, []operations.Operation) {
	if len(ops) == 0 {
		return nil, nil
	}

	byKey := make(map[string]*operations.CreateTable, len(ops))
	keys := make([]string, 0, len(ops))
	deps := make(map[string][]string, len(ops))
	for _, op := range ops {
		ct := op.(*operations.CreateTable)
		key := tableKey(ct.Schema, ct.Name)
		byKey[key] = ct
		keys = append(keys, key)
	}
	for _, key := range keys {
		for _, fk := range byKey[key].ForeignKeys {
			deps[key] = append(deps[key], tableKey(fk.PrincipalSchema, fk.PrincipalTable))
		}
	}

	order := topologicalSort(keys, deps)
	position := make(map[string]int, len(order))
	for i, key := range order {
		position[key] = i
	}

	sorted := make([]operations.Operation, 0, len(order))
	var detached []operations.Operation
	for i, key := range order {
		ct := byKey[key]
		var inline []*operations.AddForeignKey
		for _, fk := range ct.ForeignKeys {
			if j, ok := position[tableKey(fk.PrincipalSchema, fk.PrincipalTable)]; ok && j > i {
				detached = append(detached, fk)
				continue
			}
			inline = append(inline, fk)
		}
		if len(inline) != len(ct.ForeignKeys) {
			copied := *ct
			copied.ForeignKeys = inline
			ct = &copied
		}
		sorted = append(sorted, ct)
	}
	return sorted, detached
}

// sortDropTables orders dropped tables dependent first, using the foreign
// keys of the source model. Foreign keys between dropped tables that the
// order cannot honor are returned as DropForeignKey operations.
func sortDropTables(ops []operations.Operation, source *model.Model) ([]operations.Operation, []operations.Operation) {
	if len(ops) == 0 {
		return nil, nil
	}

	byKey := make(map[string]operations.Operation, len(ops))
	tables := make(map[string]*model.Table, len(ops))
	keys := make([]string, 0, len(ops))
	deps := make(map[string][]string, len(ops))
	for _, op := range ops {
		dt := op.(*operations.DropTable)
		key := tableKey(dt.Schema, dt.Name)
		byKey[key] = op
		keys = append(keys, key)
		tables[key] = source.FindTable(dt.Schema, dt.Name)
	}
	for _, key := range keys {
		t := tables[key]
		if t == nil {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if p := principalOf(source, fk); p != nil {
				deps[key] = append(deps[key], tableKey(p.Schema, p.Name))
			}
		}
	}

	order := topologicalSort(keys, deps)
	position := make(map[string]int, len(order))
	sorted := make([]operations.Operation, len(order))
	for i, key := range order {
		j := len(order) - 1 - i
		position[key] = j
		sorted[j] = byKey[key]
	}

	var violated []operations.Operation
	for _, op := range sorted {
		dt := op.(*operations.DropTable)
		key := tableKey(dt.Schema, dt.Name)
		t := tables[key]
		if t == nil {
			continue
		}
		for _, fk := range t.ForeignKeys {
			p := principalOf(source, fk)
			if p == nil {
				continue
			}
			if j, ok := position[tableKey(p.Schema, p.Name)]; ok && j < position[key] {
				violated = append(violated, &operations.DropForeignKey{Name: fk.Name, Table: dt.Name, Schema: dt.Schema})
			}
		}
	}
	return sorted, violated
}

// topologicalSort orders keys so that every key comes after the keys it
// depends on. Dependencies outside keys and self dependencies are ignored.
// Ready keys are taken in sorted order; when only cycles remain, the first
// unprocessed key in insertion order is released.
func topologicalSort(keys []string, deps map[string][]string) []string {
	if len(keys) <= 1 {
		return keys
	}

	inDegree := make(map[string]int, len(keys))
	adjList := make(map[string][]string, len(keys))
	for _, key := range keys {
		inDegree[key] = 0
	}

	// Edge principal -> dependent for every dependency inside the set.
	for _, key := range keys {
		seen := map[string]bool{}
		for _, dep := range deps[key] {
			if _, exists := inDegree[dep]; !exists || dep == key || seen[dep] {
				continue
			}
			seen[dep] = true
			adjList[dep] = append(adjList[dep], key)
			inDegree[key]++
		}
	}

	var queue []string
	var result []string
	processed := make(map[string]bool, len(keys))

	for _, key := range keys {
		if inDegree[key] == 0 {
			queue = append(queue, key)
		}
	}
	sort.Strings(queue)

	for len(result) < len(keys) {
		if len(queue) == 0 {
			// Cycle: release the next unprocessed key in insertion order.
			next := nextInOrder(keys, processed)
			if next == "" {
				break
			}
			queue = append(queue, next)
			inDegree[next] = 0
		}

		current := queue[0]
		queue = queue[1:]
		if processed[current] {
			continue
		}
		processed[current] = true
		result = append(result, current)

		neighbors := append([]string(nil), adjList[current]...)
		sort.Strings(neighbors)

		for _, neighbor := range neighbors {
			inDegree[neighbor]--
			if inDegree[neighbor] <= 0 && !processed[neighbor] {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	return result
}

func nextInOrder(order []string, processed map[string]bool) string {
	for _, key := range order {
		if !processed[key] {
			return key
		}
	}
	return ""
}
