package disk

import "fmt"

// Block identifies one page sized region of a file. It is a plain value and can be used as a map key.
type Block struct {
	FileName string
	Number   int64
}

func NewBlock(fileName string, number int64) Block {
	return Block{FileName: fileName, Number: number}
}

func (b Block) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.FileName, b.Number)
}
