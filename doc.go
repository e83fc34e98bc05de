/*
go-guidedrefine turns the multi-scale kernel masks produced by segmentation
based detectors (PSENet, CBN, DBNet style text detectors) into final polygon
detections.

Seeds are extracted as contours from the smallest and most confident kernel
mask, then grown level by level with a polygon offset that is clipped back to
the foreground of the next larger mask.  Regions that collide while growing
are merged, suppressed or clipped against each other so the emitted polygons
do not overlap.

The contour and binarization stages use OpenCV through gocv and the polygon
offset and boolean clipping use the Clipper library.

See example code and usage in the example subdirectory.
*/
package guidedrefine
