package command

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nhle/wa-assistant/internal/model"
)

// uncategorized labels tasks with no meta.
const uncategorized = "sem categoria"

// MetaCount is the number of tasks sharing a meta label.
type MetaCount struct {
	Meta  string
	Count int
}

// Insights summarizes one user's tasks at a point in time.
type Insights struct {
	Total    int
	Upcoming int
	Overdue  int
	NextWeek int
	ByMeta   []MetaCount
	Next     *model.Task
}

// ComputeInsights aggregates tasks as of now. The result depends only on
// the tasks and now.
func ComputeInsights(tasks []model.Task, now time.Time) Insights {
	in := Insights{Total: len(tasks)}
	weekAhead := now.Add(7 * 24 * time.Hour)
	counts := make(map[string]int)

	for i := range tasks {
		t := tasks[i]
		if t.DueAt.After(now) {
			in.Upcoming++
			if !t.DueAt.After(weekAhead) {
				in.NextWeek++
			}
			if in.Next == nil || t.DueAt.Before(in.Next.DueAt) ||
				(t.DueAt.Equal(in.Next.DueAt) && t.ID < in.Next.ID) {
				in.Next = &tasks[i]
			}
		} else {
			in.Overdue++
		}

		meta := t.Meta
		if meta == "" {
			meta = uncategorized
		}
		counts[meta]++
	}

	for meta, n := range counts {
		in.ByMeta = append(in.ByMeta, MetaCount{Meta: meta, Count: n})
	}
	sort.Slice(in.ByMeta, func(i, j int) bool {
		if in.ByMeta[i].Count != in.ByMeta[j].Count {
			return in.ByMeta[i].Count > in.ByMeta[j].Count
		}
		return in.ByMeta[i].Meta < in.ByMeta[j].Meta
	})

	return in
}

// Render formats the insights as a chat message.
func (in Insights) Render(loc *time.Location) string {
	if in.Total == 0 {
		return "Você ainda não tem tarefas. Crie a primeira para ver seus insights."
	}

	var sb strings.Builder
	sb.WriteString("*Seus insights*\n\n")
	fmt.Fprintf(&sb, "Total de tarefas: %d\n", in.Total)
	fmt.Fprintf(&sb, "Próximas: %d (nos próximos 7 dias: %d)\n", in.Upcoming, in.NextWeek)
	fmt.Fprintf(&sb, "Vencidas: %d\n", in.Overdue)

	if len(in.ByMeta) > 0 {
		sb.WriteString("\nPor categoria:\n")
		for _, mc := range in.ByMeta {
			fmt.Fprintf(&sb, "- %s: %d\n", mc.Meta, mc.Count)
		}
	}

	if in.Next != nil {
		fmt.Fprintf(&sb, "\nPróxima tarefa: %s em %s",
			in.Next.Description, in.Next.DueAt.In(loc).Format("02/01/2006 15:04"))
	}

	return strings.TrimRight(sb.String(), "\n")
}
