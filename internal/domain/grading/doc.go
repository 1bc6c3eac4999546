// Package grading содержит модель успеваемости: курсы, категории оценивания,
// задания и оценки, а также чистые вычисления поверх них.
//
// # Основные компоненты
//
//   - CategoryGrade / CourseGrade - агрегирование баллов в процент по категории
//     и взвешенный процент по курсу с перенормировкой весов
//   - PercentageToGPA - перевод процента в GPA по фиксированной шкале
//   - CumulativeGPA / SemesterGPA - средний GPA, взвешенный по кредитам
//
// # Числовая семантика
//
// Все значения хранятся в github.com/shopspring/decimal. Внешние проценты и GPA
// округляются до 2 знаков (HALF_UP), промежуточная доля категории - до 4 знаков.
// Вычисления никогда не возвращают ошибку на пустых данных: нейтральное
// значение - 0.
//
// Все функции пакета чистые и идемпотентны: повторный пересчёт на тех же
// строках даёт тот же результат.
package grading
