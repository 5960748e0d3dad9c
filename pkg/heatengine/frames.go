package heatengine

// PixelDelta is one pixel's edit count within a single frame.
type PixelDelta struct {
	Pixel uint32
	Count uint16
}

// FrameRecord is the sparse aggregate for one frame: the renumbered
// frame index and the counts of every pixel touched during it. Frames
// with no activity carry an empty delta slice.
type FrameRecord struct {
	Frame  uint32
	Deltas []PixelDelta
}
