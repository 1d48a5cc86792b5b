package repository

import (
	"fmt"
	"strings"
)

// setBuilder assembles the SET clause of a partial UPDATE from the fields a
// patch actually carries.
type setBuilder struct {
	cols []string
	args []any
}

func newSetBuilder() *setBuilder { return &setBuilder{} }

func (b *setBuilder) add(col string, v *string) {
	if v != nil {
		b.addValue(col, *v)
	}
}

func (b *setBuilder) addValue(col string, v any) {
	b.args = append(b.args, v)
	b.cols = append(b.cols, fmt.Sprintf("%s=$%d", col, len(b.args)))
}

// build returns an UPDATE ... RETURNING statement for the row with id.
func (b *setBuilder) build(table, id, returning string) (string, []any) {
	args := append(b.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d RETURNING %s",
		table, strings.Join(b.cols, ", "), len(args), returning)
	return query, args
}
