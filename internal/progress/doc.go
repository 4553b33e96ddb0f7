// Package progress tracks and reports transfer progress.
//
// A [Tracker] holds the byte counters of one transfer. Each call to
// [Tracker.Add] forwards an [Update] to a [Reporter], the sink that decides
// how progress is shown, and [Tracker.Finish] sends the final one. Updates
// carry a per-transfer ID because several transfers may share one reporter.
//
// # Reporters
//
//   - [Console]: periodic text lines, suitable for logs and CI
//   - [Bar]: an interactive terminal bar per file
//   - [Nop]: discards updates
//   - [Multi]: fans updates out to several reporters
//
// # Usage
//
//	console := progress.NewConsole(progress.ConsoleOptions{Workers: 8})
//	console.Start()
//	defer console.Stop()
//
//	tracker := progress.NewTracker(totalBytes, "file.bin", console)
//	tracker.Add(int64(n))
//	tracker.Finish(err)
//
// # Output Format
//
//	[rangeget] Parts: 8.0 MiB | Workers: 8
//	[rangeget] file.bin: 45.2% | 1.1 GiB / 2.5 GiB | Speed: 120 MiB/s | ETA: 12s
//	[rangeget] Files: 1 | Total time: 21s
package progress
