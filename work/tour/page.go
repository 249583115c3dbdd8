package tour

import "math/rand"

// NoCamera marks a grid cell with nothing to show: the camera pool is empty,
// so the cell renders blank.
const NoCamera = -1

// Entry is one grid-cell assignment on a tour page.
type Entry struct {
	CameraID int
	IsFiller bool
}

// TotalPages returns how many pages a tour of cameraCount cameras needs on a
// grid of gridSize slots: ceil(cameraCount/gridSize). An empty camera list
// has zero pages; the grid then renders blank cells and nothing rotates.
func TotalPages(cameraCount, gridSize int) int {
	if cameraCount <= 0 || gridSize <= 0 {
		return 0
	}
	return (cameraCount + gridSize - 1) / gridSize
}

// ComputePage builds the slot assignments for one page. ids must be the
// normalized (sorted, de-duplicated) active camera list.
//
// The page's primary batch is the ids slice [page*gridSize, page*gridSize+gridSize).
// A short final batch is padded with filler cameras sampled with replacement
// from the ids not on this page; when that pool is too small the sample
// widens to the full list, so a filler may duplicate a primary. Duplicates
// are accepted behavior, preferred over blank cells. An empty camera list
// yields a full grid of blank (non-filler) cells.
func ComputePage(ids []int, gridSize, page int, rng *rand.Rand) []Entry {
	total := TotalPages(len(ids), gridSize)
	if total == 0 {
		entries := make([]Entry, gridSize)
		for i := range entries {
			entries[i] = Entry{CameraID: NoCamera}
		}
		return entries
	}
	if page < 0 {
		page = 0
	}
	page = page % total

	entries := make([]Entry, 0, gridSize)

	start := page * gridSize
	end := start + gridSize
	if end > len(ids) {
		end = len(ids)
	}
	var batch []int
	if start < len(ids) {
		batch = ids[start:end]
	}
	for _, id := range batch {
		entries = append(entries, Entry{CameraID: id})
	}

	need := gridSize - len(batch)
	if need == 0 {
		return entries
	}

	pool := make([]int, 0, len(ids))
	onPage := make(map[int]struct{}, len(batch))
	for _, id := range batch {
		onPage[id] = struct{}{}
	}
	for _, id := range ids {
		if _, dup := onPage[id]; !dup {
			pool = append(pool, id)
		}
	}
	if len(pool) < need {
		// Not enough off-page cameras; widen to everything.
		pool = pool[:0]
		pool = append(pool, ids...)
	}

	for i := 0; i < need; i++ {
		entries = append(entries, Entry{CameraID: pool[rng.Intn(len(pool))], IsFiller: true})
	}
	return entries
}
