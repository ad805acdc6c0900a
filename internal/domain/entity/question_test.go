package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_IsCorrect_CorrectAnswer(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		Text:          "Какой газ преобладает в атмосфере Земли?",
		Options:       StringArray{"Кислород", "Азот", "Аргон", "Углекислый газ"},
		CorrectOption: 1, // "Азот" — индекс 1
		ExamType:      "jee-mains",
		Subject:       "chemistry",
	}

	// Act & Assert
	assert.True(t, question.IsCorrect(1), "IsCorrect должен вернуть true для правильного ответа")
}

func TestQuestion_IsCorrect_IncorrectAnswer(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		CorrectOption: 2,
	}

	// Act & Assert
	assert.False(t, question.IsCorrect(0), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrect(1), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrect(3), "IsCorrect должен вернуть false для неправильного ответа")
}

func TestQuestion_IsValidOption(t *testing.T) {
	// Arrange
	question := &Question{
		Options: StringArray{"A", "B", "C", "D"},
	}

	// Act & Assert: валидные опции
	assert.True(t, question.IsValidOption(0), "Индекс 0 должен быть валидным")
	assert.True(t, question.IsValidOption(3), "Индекс 3 должен быть валидным")

	// Assert: невалидные опции
	assert.False(t, question.IsValidOption(-1), "Отрицательный индекс должен быть невалидным")
	assert.False(t, question.IsValidOption(4), "Индекс вне диапазона должен быть невалидным")
	assert.False(t, question.IsValidOption(100), "Индекс далеко за пределами должен быть невалидным")
}

func TestQuestion_OptionsCount(t *testing.T) {
	// Arrange
	testCases := []struct {
		name     string
		options  StringArray
		expected int
	}{
		{"4 варианта", StringArray{"A", "B", "C", "D"}, 4},
		{"2 варианта", StringArray{"Да", "Нет"}, 2},
		{"0 вариантов", StringArray{}, 0},
		{"nil варианты", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := &Question{Options: tc.options}
			assert.Equal(t, tc.expected, question.OptionsCount())
		})
	}
}

func TestQuestion_TableName(t *testing.T) {
	question := Question{}
	assert.Equal(t, "questions", question.TableName(), "TableName должен возвращать 'questions'")
}

// Тесты для StringArray (JSONB сериализация)

func TestStringArray_Scan_ValidJSON(t *testing.T) {
	// Arrange
	jsonBytes := []byte(`["Option 1", "Option 2", "Option 3"]`)
	var arr StringArray

	// Act
	err := arr.Scan(jsonBytes)

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для валидного JSON")
	assert.Equal(t, StringArray{"Option 1", "Option 2", "Option 3"}, arr)
}

func TestStringArray_Scan_NullValue(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act
	err := arr.Scan(nil)

	// Assert
	require.NoError(t, err, "Scan должен обрабатывать NULL без ошибки")
	assert.Equal(t, StringArray{}, arr, "NULL должен превращаться в пустой массив")
}

func TestStringArray_Scan_InvalidType(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act
	err := arr.Scan(12345)

	// Assert
	assert.Error(t, err, "Scan должен вернуть ошибку для неподдерживаемого типа")
}

func TestStringArray_Value_NonEmpty(t *testing.T) {
	// Arrange
	arr := StringArray{"A", "B"}

	// Act
	value, err := arr.Value()

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `["A","B"]`, string(value.([]byte)))
}

func TestStringArray_Value_Empty(t *testing.T) {
	// Arrange
	arr := StringArray{}

	// Act
	value, err := arr.Value()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value, "Пустой массив должен сериализоваться в '[]', а не в null")
}
