package export

import (
	"fmt"
	"testing"

	"github.com/comment-export-api/internal/models"
)

func artifacts(ids ...string) []models.RenderedArtifact {
	out := make([]models.RenderedArtifact, len(ids))
	for i, id := range ids {
		out[i] = models.RenderedArtifact{CommentID: id, DisplayName: "name_" + id, Data: []byte(id)}
	}
	return out
}

func unitIDs(u *models.ArchiveUnit) []string {
	ids := make([]string, len(u.Items))
	for i, item := range u.Items {
		ids[i] = item.CommentID
	}
	return ids
}

func feed(c *Chunker, items []models.RenderedArtifact) []*models.ArchiveUnit {
	var units []*models.ArchiveUnit
	for _, a := range items {
		if u := c.Accept(a); u != nil {
			units = append(units, u)
		}
	}
	if u := c.Flush(); u != nil {
		units = append(units, u)
	}
	return units
}

func TestChunker_BoundPartitioning(t *testing.T) {
	video := &models.Video{ID: "v1", Title: "Video"}

	tests := []struct {
		name  string
		n     int
		bound int
		sizes []int
	}{
		{"exact multiple", 6, 3, []int{3, 3}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"fewer than bound", 2, 5, []int{2}},
		{"unbounded", 9, 0, []int{9}},
		{"bound one", 3, 1, []int{1, 1, 1}},
		{"empty", 0, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.n)
			for i := range ids {
				ids[i] = fmt.Sprintf("c%02d", i)
			}

			units := feed(NewChunker(video, tt.bound, "png", nil), artifacts(ids...))
			if len(units) != len(tt.sizes) {
				t.Fatalf("got %d units, want %d", len(units), len(tt.sizes))
			}

			next := 0
			for i, u := range units {
				if len(u.Items) != tt.sizes[i] {
					t.Errorf("unit %d has %d items, want %d", i, len(u.Items), tt.sizes[i])
				}
				if u.Index != i+1 {
					t.Errorf("unit %d index = %d, want %d", i, u.Index, i+1)
				}
				for _, item := range u.Items {
					if item.CommentID != ids[next] {
						t.Errorf("item order broken: got %s, want %s", item.CommentID, ids[next])
					}
					next++
				}
			}
			if next != tt.n {
				t.Errorf("partitioned %d items, want %d", next, tt.n)
			}
		})
	}
}

func TestChunker_Names(t *testing.T) {
	video := &models.Video{ID: "v1", Title: "Video"}
	c := NewChunker(video, 2, "png", nil)

	items := artifacts("c1", "c2", "c3")
	items[1].DisplayName = items[0].DisplayName

	units := feed(c, items)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}

	first := units[0]
	if first.Items[0].FileName != "name_c1.png" || first.Items[1].FileName != "name_c1_c2.png" {
		t.Errorf("colliding names not disambiguated: %q, %q", first.Items[0].FileName, first.Items[1].FileName)
	}
	if first.Name != "Video_1.zip" || units[1].Name != "Video_2.zip" {
		t.Errorf("archive names = %q, %q", first.Name, units[1].Name)
	}
	if units[1].Items[0].FileName != "name_c3.png" {
		t.Errorf("FileName = %q", units[1].Items[0].FileName)
	}
}

func TestChunker_SharedArchiveNames(t *testing.T) {
	archives := NewNameSet()
	a := feed(NewChunker(&models.Video{ID: "v1", Title: "Same"}, 0, "png", archives), artifacts("c1"))
	b := feed(NewChunker(&models.Video{ID: "v2", Title: "Same"}, 0, "png", archives), artifacts("c2"))

	if a[0].Name != "Same_1.zip" {
		t.Errorf("first archive = %q", a[0].Name)
	}
	if b[0].Name != "Same_1_v2.zip" {
		t.Errorf("second archive = %q, want disambiguated name", b[0].Name)
	}
}

func TestChunker_FlushEmpty(t *testing.T) {
	c := NewChunker(&models.Video{ID: "v1"}, 2, "png", nil)
	if u := c.Flush(); u != nil {
		t.Errorf("Flush() on empty chunker = %+v, want nil", u)
	}

	c.Accept(artifacts("c1")[0])
	if u := c.Accept(artifacts("c2")[0]); u == nil {
		t.Fatal("expected unit at bound")
	}
	if u := c.Flush(); u != nil {
		t.Errorf("Flush() after full unit = %+v, want nil", u)
	}
	if c.Units() != 1 {
		t.Errorf("Units() = %d, want 1", c.Units())
	}
}

func TestChunker_Deterministic(t *testing.T) {
	video := &models.Video{ID: "v1", Title: "Video"}
	ids := []string{"a", "b", "c", "d", "e"}

	first := feed(NewChunker(video, 2, "png", nil), artifacts(ids...))
	second := feed(NewChunker(video, 2, "png", nil), artifacts(ids...))

	if len(first) != len(second) {
		t.Fatalf("unit counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("unit %d name differs: %q vs %q", i, first[i].Name, second[i].Name)
		}
		a, b := unitIDs(first[i]), unitIDs(second[i])
		for j := range a {
			if a[j] != b[j] || first[i].Items[j].FileName != second[i].Items[j].FileName {
				t.Errorf("unit %d item %d differs", i, j)
			}
		}
	}
}
