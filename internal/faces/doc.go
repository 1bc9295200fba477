/*
Package faces finds faces in images and describes each one with an embedding
vector for clustering.

A Detector wraps one of three strategies, chosen at startup:

  - cascade: a pure-Go multi-scale Haar cascade over an integral image,
    followed by greedy non-maximum suppression. Always available.
  - native: libvips (via govips) loads, auto-rotates, converts to grayscale
    and shrinks the image; the plane is then scored by the same cascade.
    Building with -tags novips drops the libvips dependency and makes this
    strategy fail at construction.
  - model: cascade proposals are cropped and embedded by an ONNX ArcFace
    model. With no model configured it returns no faces.

Images are shrunk so the longest side is at most Config.MaxDimension before
scanning, and boxes are mapped back to source pixels.

libvips and onnxruntime handles are only touched from a goroutine locked to
its OS thread. Detect hands work to that thread and receives plain Go values
back.
*/
package faces
