package mesh

import "sort"

// Optimize merges sub-objects that share a material and rebuilds the
// vertex and index buffers with deduplication inside each merged group.
// Groups are ordered by material path, ties keep source order. Sub-objects
// without indices are dropped. Optimize does not modify d, and applying it
// to its own output returns identical data.
func Optimize(d *Data) *Data {
	subs := make([]SubObject, 0, len(d.SubObjects))
	for _, s := range d.SubObjects {
		if s.IndexCount > 0 {
			subs = append(subs, s)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].MaterialPath < subs[j].MaterialPath
	})

	out := &Data{}
	for start := 0; start < len(subs); {
		end := start + 1
		for end < len(subs) && subs[end].MaterialPath == subs[start].MaterialPath {
			end++
		}

		group := SubObject{
			Name:         subs[start].Name,
			StartIndex:   uint32(len(out.Indices)),
			BoundingBox:  EmptyBox(),
			MaterialPath: subs[start].MaterialPath,
		}
		seen := make(map[vertexKey]uint32)
		for _, s := range subs[start:end] {
			for _, src := range d.Indices[s.StartIndex : s.StartIndex+s.IndexCount] {
				v := d.Vertices[src]
				k := v.key()
				idx, ok := seen[k]
				if !ok {
					idx = uint32(len(out.Vertices))
					out.Vertices = append(out.Vertices, v)
					seen[k] = idx
					group.BoundingBox.Add(v.Position)
				}
				out.Indices = append(out.Indices, idx)
			}
		}
		group.IndexCount = uint32(len(out.Indices)) - group.StartIndex
		out.SubObjects = append(out.SubObjects, group)

		start = end
	}
	return out
}
