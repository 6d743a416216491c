// Package fuzztests houses Go fuzz harnesses for the blob readers and the
// capture passes. Arbitrary bytes must come back as errors, never as panics,
// and anything a pass accepts must come out as a consistent blob.
//
// Назначение: прогонять произвольные байты через контейнер, декодер программы
// и оба прохода захвата.
//
// Не делает: генерацию корпусов на диск, выполнение CLI.
//
// Зависимости: internal/container, internal/bitcode, internal/capture,
// internal/samples, internal/testkit.

package fuzztests
