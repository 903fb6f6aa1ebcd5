/*
crowdlabel annotates people in video.  Each frame of an input container is run
through a person Detector, optionally a mask Refiner, and has bounding boxes,
confidence tags and translucent silhouettes drawn onto it before being written
to an MP4 container with the same resolution and frame rate.

Frames are processed one at a time in order.  A frame stride can be set to run
detection on every Nth frame only, the skipped frames are copied to the output
unmodified.

Detection runs either in process on an ONNX YOLOv8/YOLO11 export through the
OpenCV DNN module (package dnn) or in an external worker process speaking a
length prefixed msgpack protocol over stdio (package worker).  Mask refinement
always uses a worker.

See cmd/crowdlabel for the command line tool.
*/
package crowdlabel
