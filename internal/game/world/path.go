package world

// PathTo finds the shortest route between two rooms over the directed exit
// graph. The returned path excludes the start room and ends with dest.
//
// The found flag distinguishes "already there" (nil, true when start ==
// dest) from "unreachable" (nil, false); callers must not overload the
// empty path for both.
//
// Exits are explored in declaration order, so ties resolve to the earliest
// authored exit. An exit from A to B does not imply a reverse exit.
func (w *World) PathTo(startID, destID string) ([]string, bool) {
	if _, ok := w.entities[startID]; !ok {
		return nil, false
	}
	if _, ok := w.entities[destID]; !ok {
		return nil, false
	}
	if startID == destID {
		return nil, true
	}

	visited := map[string]bool{startID: true}
	queue := [][]string{{startID}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		room, ok := w.entities[path[len(path)-1]]
		if !ok || room.Kind != KindRoom {
			continue
		}
		for _, exit := range room.Exits {
			if visited[exit.RoomID] {
				continue
			}
			visited[exit.RoomID] = true

			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			next = append(next, exit.RoomID)

			if exit.RoomID == destID {
				return next[1:], true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}
