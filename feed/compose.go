package feed

import "slices"

// Compose merges original posts by followed accounts and repost records by
// followed accounts into one chronologically descending timeline.
//
// Each original post yields one item sorted by its creation time; each
// repost record yields one item sorted by the repost time, carrying a
// RepostContext. The same underlying post may legitimately appear once as
// an original and once per distinct repost, but never twice for the same
// justification. Ties keep input order (posts before reposts).
func Compose(posts []Post, reposts []Repost) []Item {
	totals := make(map[string]int, len(reposts))
	for _, r := range reposts {
		totals[r.Post.ID]++
	}

	items := make([]Item, 0, len(posts)+len(reposts))
	seen := make(map[string]struct{}, len(posts)+len(reposts))

	for _, p := range posts {
		key := "own:" + p.ID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		post := p.Clone()
		post.RepostContext = nil
		items = append(items, Item{
			Post:        post,
			SortTime:    post.CreatedAt,
			RepostTotal: totals[post.ID],
		})
	}

	for _, r := range reposts {
		key := "repost:" + r.Post.ID + ":" + r.By.Handle
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		post := r.Post.Clone()
		post.RepostContext = &RepostContext{By: r.By, At: r.At}
		items = append(items, Item{
			Post:        post,
			SortTime:    r.At,
			RepostTotal: totals[post.ID],
		})
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		return b.SortTime.Compare(a.SortTime)
	})
	return items
}
